package eflomal

import (
	"bufio"
	"fmt"
	"math"

	"github.com/golang/glog"
	"github.com/kho/easy"
)

// Priors holds the optional prior tables loaded from a priors file
// (spec.md §6). A nil *Priors (or a nil field within one) means "no prior
// of that kind"; the sampler and counts-rebuild treat absence and an
// all-zero prior identically.
type Priors struct {
	// Lex holds, per source token e, a CountMap from target token f to
	// the raw bits of a float32 prior weight alpha(e, f) — the same
	// container used for lexical counts, reinterpreted (spec.md §3,
	// "Priors (optional)"). Nil if no lexical priors were supplied.
	Lex []*CountMap
	// LexSum[e] is the running sum of lexical prior mass for source
	// token e, plus LEX_ALPHA*V_target; precomputed once at load time so
	// the sampler inner loop never has to re-sum a row.
	LexSum []Count

	// Jump holds the jump prior alpha(delta), indexed by jumpIndex,
	// already selected for this run's direction (forward priors for a
	// forward run, reverse priors for a reverse run). Nil if absent.
	Jump []Count

	// Fert holds the fertility prior alpha(e, phi), flattened with
	// fertIndex, selected for this run's direction. Nil if absent.
	Fert []Count
}

// LoadPriors reads the priors file at path (spec.md §6): a seven-integer
// header (source_vocab, target_vocab, n_lex, n_fwd_jump, n_rev_jump,
// n_fwd_fert, n_rev_fert) followed by that many lines per block. A
// reverse-direction load swaps the header's source/target vocabulary
// check, transposes (e, f) in lexical entries, and selects the *_rev_*
// jump/fert blocks instead of the *_fwd_* ones.
func LoadPriors(path string, source, target *Text, reverse bool) (*Priors, error) {
	f, err := easy.Open(path)
	if err != nil {
		return nil, fmt.Errorf("LoadPriors(%q): failed to open: %w", path, err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	line := 1

	var sourceVocab, targetVocab, nLex, nFwdJump, nRevJump, nFwdFert, nRevFert int
	header, err := r.ReadString('\n')
	if err != nil && header == "" {
		return nil, fmt.Errorf("LoadPriors(%q): failed to read header", path)
	}
	if _, err := fmt.Sscan(header,
		&sourceVocab, &targetVocab, &nLex, &nFwdJump, &nRevJump, &nFwdFert, &nRevFert,
	); err != nil {
		return nil, fmt.Errorf("LoadPriors(%q): failed to read header: %w", path, err)
	}
	line++

	if reverse {
		sourceVocab, targetVocab = targetVocab, sourceVocab
	}
	if Token(sourceVocab) != source.VocabularySize || Token(targetVocab) != target.VocabularySize {
		return nil, fmt.Errorf(
			"LoadPriors(%q): vocabulary size mismatch, source is %d (expected %d) and target is %d (expected %d)",
			path, sourceVocab, source.VocabularySize, targetVocab, target.VocabularySize)
	}

	p := &Priors{}
	if nLex > 0 {
		p.Lex = make([]*CountMap, source.VocabularySize)
		for i := range p.Lex {
			p.Lex[i] = NewCountMap()
		}
		p.LexSum = make([]Count, source.VocabularySize)
	}
	nJump := nFwdJump
	nFertLines := nFwdFert
	if reverse {
		nJump = nRevJump
		nFertLines = nRevFert
	}
	if nJump > 0 {
		p.Jump = make([]Count, JumpArrayLen)
	}
	if nFertLines > 0 {
		p.Fert = make([]Count, int(source.VocabularySize)*FertArrayLen)
	}

	for i := 0; i < nLex; i++ {
		rec, err := r.ReadString('\n')
		if err != nil && rec == "" {
			return nil, fmt.Errorf("LoadPriors(%q): error in line %d", path, line)
		}
		var e, ff uint32
		var alpha float32
		if _, err := fmt.Sscan(rec, &e, &ff, &alpha); err != nil {
			return nil, fmt.Errorf("LoadPriors(%q): error in line %d: %w", path, line, err)
		}
		if reverse {
			e, ff = ff, e
		}
		if Token(e) >= source.VocabularySize {
			return nil, fmt.Errorf("LoadPriors(%q): line %d: source index %d out of range", path, line, e)
		}
		p.Lex[e].Add(Token(ff), math.Float32bits(alpha))
		p.LexSum[e] += Count(alpha)
		line++
	}
	if nLex > 0 {
		for e := range p.LexSum {
			p.LexSum[e] += LexAlpha * Count(target.VocabularySize)
		}
	}

	readJumps := func(n int, apply bool) error {
		for i := 0; i < n; i++ {
			rec, err := r.ReadString('\n')
			if err != nil && rec == "" {
				return fmt.Errorf("LoadPriors(%q): error in line %d", path, line)
			}
			var jump int
			var alpha float32
			if _, err := fmt.Sscan(rec, &jump, &alpha); err != nil {
				return fmt.Errorf("LoadPriors(%q): error in line %d: %w", path, line, err)
			}
			if apply {
				idx := jumpIndex(0, jump, 0)
				p.Jump[idx] += Count(alpha)
			}
			line++
		}
		return nil
	}
	if err := readJumps(nFwdJump, !reverse); err != nil {
		return nil, err
	}
	if err := readJumps(nRevJump, reverse); err != nil {
		return nil, err
	}

	readFerts := func(n int, apply bool) error {
		for i := 0; i < n; i++ {
			rec, err := r.ReadString('\n')
			if err != nil && rec == "" {
				return fmt.Errorf("LoadPriors(%q): error in line %d", path, line)
			}
			var e uint32
			var k int
			var alpha float32
			if _, err := fmt.Sscan(rec, &e, &k, &alpha); err != nil {
				return fmt.Errorf("LoadPriors(%q): error in line %d: %w", path, line, err)
			}
			if apply {
				if Token(e) >= source.VocabularySize {
					return fmt.Errorf("LoadPriors(%q): line %d: index %d out of range", path, line, e)
				}
				p.Fert[fertIndex(Token(e), k)] += Count(alpha)
			}
			line++
		}
		return nil
	}
	if err := readFerts(nFwdFert, !reverse); err != nil {
		return nil, err
	}
	if err := readFerts(nRevFert, reverse); err != nil {
		return nil, err
	}

	if nLex > 0 || nJump > 0 || nFertLines > 0 {
		glog.V(1).Infof("LoadPriors(%q): loaded %d lexical, %d jump, %d fertility priors", path, nLex, nJump, nFertLines)
	}
	return p, nil
}

// lexPriorGet returns the prior weight alpha(e, f), decoded from its
// raw-bits representation, and whether an entry exists.
func (p *Priors) lexPriorGet(e, f Token) (Count, bool) {
	if p == nil || p.Lex == nil {
		return 0, false
	}
	bits, ok := p.Lex[e].Get(f)
	if !ok {
		return 0, false
	}
	return math.Float32frombits(bits), true
}
