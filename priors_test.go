package eflomal

import (
	"math"
	"testing"
)

func TestLoadPriorsForward(t *testing.T) {
	source := &Text{VocabularySize: 3, Sentences: []Sentence{{1}}}
	target := &Text{VocabularySize: 2, Sentences: []Sentence{{1}}}
	contents := "3 2 1 1 0 0 0\n1 1 0.5\n0 5.0\n"
	path := writeTempFile(t, contents)

	p, err := LoadPriors(path, source, target, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alpha, ok := p.lexPriorGet(1, 1)
	if !ok {
		t.Fatal("expected a lexical prior entry for (1, 1)")
	}
	if math.Abs(float64(alpha)-0.5) > 1e-6 {
		t.Errorf("expected alpha(1, 1) = 0.5; got %g", alpha)
	}
	if p.Jump == nil {
		t.Fatal("expected a forward jump prior to be loaded")
	}
	idx := jumpIndex(0, 0, 0)
	if math.Abs(float64(p.Jump[idx])-5.0) > 1e-6 {
		t.Errorf("expected jump prior at index %d = 5.0; got %g", idx, p.Jump[idx])
	}
}

func TestLoadPriorsReverseSwapsVocabAndTransposes(t *testing.T) {
	// Stored header is (source=2, target=3) as the file's own producer saw
	// it; loading in reverse swaps the expectation so it matches a caller
	// whose source/target Text values are transposed.
	source := &Text{VocabularySize: 3, Sentences: []Sentence{{1}}}
	target := &Text{VocabularySize: 2, Sentences: []Sentence{{1}}}
	contents := "2 3 1 0 0 0 0\n1 2 0.25\n"
	path := writeTempFile(t, contents)

	p, err := LoadPriors(path, source, target, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	alpha, ok := p.lexPriorGet(2, 1)
	if !ok {
		t.Fatal("expected the transposed lexical prior entry (2, 1)")
	}
	if math.Abs(float64(alpha)-0.25) > 1e-6 {
		t.Errorf("expected alpha(2, 1) = 0.25; got %g", alpha)
	}
}

func TestLoadPriorsVocabMismatch(t *testing.T) {
	source := &Text{VocabularySize: 3}
	target := &Text{VocabularySize: 2}
	path := writeTempFile(t, "9 9 0 0 0 0 0\n")
	if _, err := LoadPriors(path, source, target, false); err == nil {
		t.Error("expected a vocabulary size mismatch error")
	}
}

func TestLexPriorGetOnNilPriors(t *testing.T) {
	var p *Priors
	if _, ok := p.lexPriorGet(1, 1); ok {
		t.Error("expected lexPriorGet on a nil *Priors to report not found")
	}
	empty := &Priors{}
	if _, ok := empty.lexPriorGet(1, 1); ok {
		t.Error("expected lexPriorGet with no Lex table to report not found")
	}
}
