package eflomal

import "math"

// Sample runs one sweep of the Gibbs kernel over every non-skipped target
// position: withdraw the current link's contribution to the sufficient
// statistics, build a categorical distribution over the source_length+1
// candidates (including NULL), draw a new link, and re-incorporate it.
//
// If model is Model3, the per-source-word fertility distribution is
// redrawn from its posterior once at the start of the sweep (the
// fertility categorical is fixed for the duration of the sweep, unlike
// the lexical and jump distributions which update after every position).
//
// If scores is non-nil, no resampling occurs: the current link is kept,
// and scores[sent] accumulates (1/T) times the sum over target positions
// of the log of the largest non-NULL candidate weight (for model >= 2
// divided by the squared jump normaliser), for use by the scoring CLI path
// (spec.md §8, scenario 6).
func (ta *AlignmentState) Sample(rng *RandState, scores []Count) {
	if ta.Model >= Model3 {
		ta.resampleFertility(rng)
	}

	nSentences := ta.cleanSentences()
	for sent, links := range ta.Links {
		if links == nil {
			continue
		}
		ta.sampleSentence(rng, sent, links, scores, nSentences, nil, -1, -1, ta.JumpCounts, ta.FertCounts)
	}
}

// resampleFertility recomputes empirical fertility counts from the current
// link vectors and draws a fresh Dirichlet sample for every source word's
// fertility distribution, storing it as successive probability ratios
// P(phi)/P(phi-1) at index phi (spec.md §3, "Fertility array").
func (ta *AlignmentState) resampleFertility(rng *RandState) {
	eCount := make([]int, ta.Source.VocabularySize)

	if ta.Prior != nil && ta.Prior.Fert != nil {
		for i := range ta.FertCounts {
			ta.FertCounts[i] = ta.Prior.Fert[i] + FertAlpha
		}
	} else {
		for i := range ta.FertCounts {
			ta.FertCounts[i] = FertAlpha
		}
	}

	nSentences := ta.cleanSentences()
	fert := ta.fertScratch
	for sent := 0; sent < nSentences; sent++ {
		links := ta.Links[sent]
		if links == nil {
			continue
		}
		sourceTokens := ta.Source.Sentences[sent]
		sourceLength := len(sourceTokens)
		for i := 0; i < sourceLength; i++ {
			fert[i] = 0
		}
		for _, i := range links {
			if i != NullLink {
				fert[i]++
			}
		}
		for i := 0; i < sourceLength; i++ {
			e := sourceTokens[i]
			eCount[e]++
			ta.FertCounts[fertIndex(e, fert[i])] += 1.0
		}
	}

	alpha := make([]Count, FertArrayLen)
	for e := 1; e < len(eCount); e++ {
		if eCount[e] == 0 {
			continue
		}
		buf := ta.FertCounts[fertIndex(Token(e), 0) : fertIndex(Token(e), 0)+FertArrayLen]
		copy(alpha, buf)
		rng.DirichletUnnormalized(alpha, buf)
		buf[FertArrayLen-1] = 1e-10
		for i := FertArrayLen - 2; i >= 1; i-- {
			buf[i] /= buf[i-1]
		}
	}
}

// sampleSentence runs the per-position kernel over one sentence. acc, when
// non-nil, is the shared consensus accumulator for this position's block
// within a T*(S+1) buffer (see driver.go); accBase/accStride describe
// where this sentence's blocks start and how large each is. When acc is
// nil the position is resolved by ordinary categorical sampling (or, if
// scores is non-nil, by keeping the existing link and scoring it).
// jumpCounts/fertCounts are passed explicitly rather than read off ta so
// that the consensus sweep (driver.go) can have every sampler share a
// single jump histogram and fertility table (the one cached from tas[0]
// at the top of text_alignment_sample) while still using each sampler's
// own lexical statistics.
func (ta *AlignmentState) sampleSentence(
	rng *RandState, sent int, links Sentence2, scores []Count, nSentences int,
	acc []Count, accBase, accStride int, jumpCounts, fertCounts []Count,
) {
	sourceTokens := ta.Source.Sentences[sent]
	targetTokens := ta.Target.Sentences[sent]
	sourceLength := len(sourceTokens)
	targetLength := len(targetTokens)
	model := ta.Model
	clean := sent < nSentences

	fert := ta.fertScratch
	if model >= Model3 {
		for i := 0; i < sourceLength; i++ {
			fert[i] = 0
		}
		for _, i := range links {
			if i != NullLink {
				fert[i]++
			}
		}
	}

	aaJp1Table := ta.aaJp1Scratch
	if model >= Model2 {
		aaJp1 := sourceLength
		for j := targetLength; j > 0; j-- {
			aaJp1Table[j-1] = aaJp1
			if links[j-1] != NullLink {
				aaJp1 = int(links[j-1])
			}
		}
	}

	ps := ta.psScratch
	var sentenceScore Count
	aaJm1 := -1
	for j := 0; j < targetLength; j++ {
		f := targetTokens[j]
		oldI := links[j]
		var oldE Token
		if oldI == NullLink {
			oldE = 0
		} else {
			oldE = sourceTokens[oldI]
			if model >= Model3 {
				fert[oldI]--
			}
		}

		var reducedCount uint32
		if clean {
			ta.InvSourceCountSum[oldE] = 1.0 / (1.0/ta.InvSourceCountSum[oldE] - 1.0)
			reducedCount = ta.SourceCount[oldE].Add(f, ^uint32(0))
			invariant(reducedCount&0x80000000 == 0,
				"negative count for (e=%d, f=%d)", oldE, f)
		}

		var aaJp1 int
		if model >= Model2 {
			aaJp1 = aaJp1Table[j]
		}
		skipJump := 0
		if model >= Model2 {
			skipJump = jumpIndex(aaJm1, aaJp1, sourceLength)
		}

		if model >= Model2 && clean {
			if links[j] == NullLink {
				jumpCounts[JumpSum] -= 1.0
				jumpCounts[skipJump] -= 1.0
			} else {
				oldJump1 := jumpIndex(aaJm1, int(links[j]), sourceLength)
				oldJump2 := jumpIndex(int(links[j]), aaJp1, sourceLength)
				jumpCounts[JumpSum] -= 2.0
				jumpCounts[oldJump1] -= 1.0
				jumpCounts[oldJump2] -= 1.0
			}
		}

		nullN, _ := ta.SourceCount[0].Get(f)
		psSum := ta.buildDistribution(sourceTokens, f, aaJm1, aaJp1, sourceLength, fert, ps, jumpCounts, fertCounts)
		ps[sourceLength] = psSum + ta.nullTerm(nullN, skipJump, jumpCounts)

		if scores != nil {
			maxP := Count(0)
			for i := 0; i < sourceLength; i++ {
				var p Count
				if i == 0 {
					p = ps[0]
				} else {
					p = ps[i] - ps[i-1]
				}
				if p > maxP {
					maxP = p
				}
			}
			if model >= Model2 {
				sentenceScore += Count(math.Log(float64(maxP / (jumpCounts[JumpSum] * jumpCounts[JumpSum]))))
			} else {
				sentenceScore += Count(math.Log(float64(maxP)))
			}
		}

		total := ps[sourceLength]

		var newI int
		switch {
		case acc != nil:
			base := accBase + j*accStride
			scale := Count(1.0) / total
			acc[base] += ps[0] * scale
			for i := 1; i <= sourceLength; i++ {
				acc[base+i] += (ps[i] - ps[i-1]) * scale
			}
			newI = 0
			best := acc[base]
			for i := 1; i <= sourceLength; i++ {
				if acc[base+i] > best {
					newI = i
					best = acc[base+i]
				}
			}
		case scores != nil:
			if oldI == NullLink {
				newI = sourceLength
			} else {
				newI = int(oldI)
			}
		default:
			newI = rng.CumulativeCategorical(ps[:sourceLength+1])
		}

		var newE Token
		if newI == sourceLength {
			newE = 0
			links[j] = NullLink
		} else {
			newE = sourceTokens[newI]
			links[j] = Link(newI)
			if model >= Model3 {
				fert[newI]++
			}
		}

		if clean {
			if oldE != newE && reducedCount == 0 {
				ok := ta.SourceCount[oldE].Delete(f)
				invariant(ok, "expected zero-count entry for (e=%d, f=%d) to exist", oldE, f)
			}
			ta.InvSourceCountSum[newE] = 1.0 / (1.0/ta.InvSourceCountSum[newE] + 1.0)
			ta.SourceCount[newE].Add(f, 1)
		}

		if clean && model >= Model2 {
			if newE == 0 {
				jumpCounts[JumpSum] += 1.0
				jumpCounts[skipJump] += 1.0
			} else {
				newJump1 := jumpIndex(aaJm1, newI, sourceLength)
				newJump2 := jumpIndex(newI, aaJp1, sourceLength)
				jumpCounts[JumpSum] += 2.0
				jumpCounts[newJump1] += 1.0
				jumpCounts[newJump2] += 1.0
			}
		}
		if model >= Model2 && newE != 0 {
			aaJm1 = newI
		}
	}

	if scores != nil {
		scores[sent] += sentenceScore / Count(targetLength)
	}
}

// nullTerm computes the NULL candidate's additive contribution to ps_sum.
// Rather than scaling the source_length non-NULL terms by the jump
// normaliser squared, the single NULL term is scaled by the normaliser
// once; the distribution is renormalised at sampling time regardless, so
// this is an equivalent but cheaper computation. Do not "fix" this by
// rescaling the other terms — see DESIGN.md.
func (ta *AlignmentState) nullTerm(nullN uint32, skipJump int, jumpCounts []Count) Count {
	base := ta.NullPrior * ta.InvSourceCountSum[0] * (NullAlpha + Count(nullN))
	if ta.Model >= Model2 {
		return base * jumpCounts[JumpSum] * jumpCounts[skipJump]
	}
	return base
}

// buildDistribution fills ps[0:sourceLength] with the running cumulative
// distribution over non-NULL candidates and returns its final (unscaled)
// sum. Specialized per model the way the original keeps three distinct
// unrolled loops rather than branching inside the hot loop.
func (ta *AlignmentState) buildDistribution(
	sourceTokens Sentence, f Token, aaJm1, aaJp1, sourceLength int, fert []int, ps []Count,
	jumpCounts, fertCounts []Count,
) Count {
	switch {
	case ta.Model >= Model3:
		jump1 := jumpIndex(aaJm1, 0, sourceLength)
		jump2 := jumpIndex(0, aaJp1, sourceLength)
		var psSum Count
		for i := 0; i < sourceLength; i++ {
			e := sourceTokens[i]
			fertIdx := fertIndex(e, fert[i]+1)
			n, _ := ta.SourceCount[e].Get(f)
			alpha := ta.lexAlpha(e, f)
			psSum += ta.InvSourceCountSum[e] * (alpha + Count(n)) *
				jumpCounts[jump1] * jumpCounts[jump2] * fertCounts[fertIdx]
			ps[i] = psSum
			if jump1 < JumpArrayLen-1 {
				jump1++
			}
			if jump2 > 0 {
				jump2--
			}
		}
		return psSum
	case ta.Model >= Model2:
		jump1 := jumpIndex(aaJm1, 0, sourceLength)
		jump2 := jumpIndex(0, aaJp1, sourceLength)
		var psSum Count
		for i := 0; i < sourceLength; i++ {
			e := sourceTokens[i]
			n, _ := ta.SourceCount[e].Get(f)
			alpha := ta.lexAlpha(e, f)
			psSum += ta.InvSourceCountSum[e] * (alpha + Count(n)) *
				jumpCounts[jump1] * jumpCounts[jump2]
			ps[i] = psSum
			if jump1 < JumpArrayLen-1 {
				jump1++
			}
			if jump2 > 0 {
				jump2--
			}
		}
		return psSum
	default:
		var psSum Count
		for i := 0; i < sourceLength; i++ {
			e := sourceTokens[i]
			n, _ := ta.SourceCount[e].Get(f)
			alpha := ta.lexAlpha(e, f)
			psSum += ta.InvSourceCountSum[e] * (alpha + Count(n))
			ps[i] = psSum
		}
		return psSum
	}
}

// lexAlpha returns LEX_ALPHA, plus the loaded lexical prior for (e, f) if
// one was supplied.
func (ta *AlignmentState) lexAlpha(e, f Token) Count {
	if a, ok := ta.Prior.lexPriorGet(e, f); ok {
		return a + LexAlpha
	}
	return LexAlpha
}
