package eflomal

import "fmt"

// AlignmentState is one independent sampler's complete mutable state over a
// source/target corpus pair: the per-sentence link arena, the lexical
// count maps and their cached inverse sums, the jump histogram, the
// per-word fertility distribution, and (optionally) the prior tables that
// seed all of the above. Nothing here is shared between AlignmentStates;
// every field is exclusively owned (spec.md §3, "Lifecycle").
type AlignmentState struct {
	Model  Model
	Source *Text
	Target *Text
	Prior  *Priors

	// NClean is the number of leading sentences trusted to contribute to
	// sufficient statistics; 0 means all sentences. Sentences at or past
	// this index are still aligned every sweep, but never update counts.
	NClean int
	// NullPrior is the probability mass assigned to the NULL link during
	// randomisation and folded into the NULL candidate's categorical
	// weight every sampling step.
	NullPrior Count

	// Links holds one slice per target sentence, indexed the same as
	// Source/Target.Sentences; a nil entry means that pair is skipped
	// (either side had an empty sentence there).
	Links []Sentence2

	SourceCount       []*CountMap
	InvSourceCountSum []Count
	JumpCounts        []Count
	FertCounts        []Count

	fertScratch  []int
	psScratch    []Count
	aaJp1Scratch []int
}

// Sentence2 is a per-target-sentence link vector (one Link per target
// token). Named distinctly from Sentence (a Token sequence) since the two
// are never interchangeable, but kept as a plain slice type so the zero
// value (nil) is the natural "skipped pair" sentinel.
type Sentence2 []Link

// NewAlignmentState allocates an AlignmentState for the given source/target
// pair. The two texts must have the same sentence count (spec.md §3,
// "matching sentence count"); sentences are paired by index and a pair is
// skipped whenever either side is empty.
func NewAlignmentState(source, target *Text) (*AlignmentState, error) {
	if len(source.Sentences) != len(target.Sentences) {
		return nil, fmt.Errorf(
			"NewAlignmentState: number of sentences differ: source has %d, target has %d",
			len(source.Sentences), len(target.Sentences))
	}

	ta := &AlignmentState{
		Model:     Model1,
		Source:    source,
		Target:    target,
		NullPrior: 0.2,
	}

	ta.Links = make([]Sentence2, len(target.Sentences))
	for i := range ta.Links {
		if len(source.Sentences[i]) > 0 && len(target.Sentences[i]) > 0 {
			ta.Links[i] = make(Sentence2, len(target.Sentences[i]))
		}
	}

	ta.SourceCount = make([]*CountMap, source.VocabularySize)
	for i := range ta.SourceCount {
		ta.SourceCount[i] = NewCountMap()
	}
	ta.InvSourceCountSum = make([]Count, source.VocabularySize)
	ta.FertCounts = make([]Count, int(source.VocabularySize)*FertArrayLen)
	ta.JumpCounts = make([]Count, JumpArrayLen)

	ta.fertScratch = make([]int, MaxSentLen)
	ta.psScratch = make([]Count, MaxSentLen+1)
	ta.aaJp1Scratch = make([]int, MaxSentLen)

	return ta, nil
}

// SetPriors attaches a loaded Priors table to this state. Must be called,
// if at all, before the first MakeCounts of each model's iteration block.
func (ta *AlignmentState) SetPriors(p *Priors) {
	ta.Prior = p
}

// Randomize assigns every non-skipped link an initial value: NULL with
// probability NullPrior, otherwise uniform over the paired source
// sentence's positions (spec.md §4.5, "an initial randomisation").
func (ta *AlignmentState) Randomize(rng *RandState) {
	for sent, links := range ta.Links {
		if links == nil {
			continue
		}
		sourceLen := uint32(len(ta.Source.Sentences[sent]))
		for j := range links {
			if rng.Uniform32() < ta.NullPrior {
				links[j] = NullLink
			} else {
				links[j] = Link(rng.BoundedBiased(sourceLen))
			}
		}
	}
}

// MakeCounts re-derives every sufficient statistic from the current link
// vectors: lexical counts, inverse sums, and (for model >= 2) the jump
// histogram. Called once before each model's block of sampling iterations
// (spec.md §4.4).
func (ta *AlignmentState) MakeCounts() {
	targetVocab := Count(ta.Target.VocabularySize)
	for e := range ta.SourceCount {
		ta.SourceCount[e].Reset()
		if ta.Prior != nil && ta.Prior.LexSum != nil {
			ta.InvSourceCountSum[e] = ta.Prior.LexSum[e]
		} else {
			ta.InvSourceCountSum[e] = LexAlpha * targetVocab
		}
	}

	if ta.Model >= Model2 {
		if ta.Prior != nil && ta.Prior.Jump != nil {
			ta.JumpCounts[JumpSum] = JumpMaxEst * JumpAlpha
			for i := 0; i < JumpArrayLen-1; i++ {
				ta.JumpCounts[i] = ta.Prior.Jump[i] + JumpAlpha
				ta.JumpCounts[JumpSum] += ta.Prior.Jump[i]
			}
		} else {
			for i := 0; i < JumpArrayLen-1; i++ {
				ta.JumpCounts[i] = JumpAlpha
			}
			ta.JumpCounts[JumpSum] = JumpMaxEst * JumpAlpha
		}
	}

	nSentences := ta.cleanSentences()
	for sent := 0; sent < nSentences; sent++ {
		links := ta.Links[sent]
		if links == nil {
			continue
		}
		sourceTokens := ta.Source.Sentences[sent]
		targetTokens := ta.Target.Sentences[sent]
		sourceLength := len(sourceTokens)
		aaJm1 := -1
		for j, i := range links {
			var e Token
			if i == NullLink {
				e = 0
			} else {
				e = sourceTokens[i]
			}
			f := targetTokens[j]
			ta.InvSourceCountSum[e] += 1.0
			ta.SourceCount[e].Add(f, 1)
			if ta.Model >= Model2 && e != 0 {
				jump := jumpIndex(aaJm1, int(i), sourceLength)
				aaJm1 = int(i)
				ta.JumpCounts[jump] += 1.0
				ta.JumpCounts[JumpSum] += 1.0
			}
		}
		if ta.Model >= Model2 && aaJm1 >= 0 {
			ta.JumpCounts[jumpIndex(aaJm1, sourceLength, sourceLength)] += 1.0
			ta.JumpCounts[JumpSum] += 1.0
		}
	}

	for e := range ta.InvSourceCountSum {
		ta.InvSourceCountSum[e] = 1.0 / ta.InvSourceCountSum[e]
	}
}

func (ta *AlignmentState) cleanSentences() int {
	if ta.NClean != 0 {
		return ta.NClean
	}
	return len(ta.Target.Sentences)
}

// LexiconItems exports the current (target token, count) pairs for source
// token e. This is not part of the CLI surface (nothing upstream ever
// shipped a vocabulary dump flag — see SPEC_FULL.md §6.1) but is useful to
// an embedding caller that wants the trained lexicon directly.
func (ta *AlignmentState) LexiconItems(e Token) (targets []Token, counts []uint32) {
	ta.SourceCount[e].Items(func(f Token, n uint32) {
		targets = append(targets, f)
		counts = append(counts, n)
	})
	return targets, counts
}
