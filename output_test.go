package eflomal

import (
	"os"
	"strings"
	"testing"
)

func TestWriteMosesFormatsLinksAndSkips(t *testing.T) {
	source := &Text{VocabularySize: 3, Sentences: []Sentence{{1, 2}, {}}}
	target := &Text{VocabularySize: 3, Sentences: []Sentence{{1, 2}, {1}}}
	ta, err := NewAlignmentState(source, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ta.Links[0][0] = 0
	ta.Links[0][1] = NullLink

	dir := t.TempDir()
	path := dir + "/links.txt"
	if err := WriteMoses(path, ta, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading back file: %v", err)
	}
	lines := strings.Split(strings.TrimSuffix(string(contents), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines; got %d", len(lines))
	}
	if lines[0] != "0-0" {
		t.Errorf("expected first line %q; got %q", "0-0", lines[0])
	}
	if lines[1] != "" {
		t.Errorf("expected second (skipped) line to be empty; got %q", lines[1])
	}
}

func TestWriteMosesReverseTransposesIndices(t *testing.T) {
	source := &Text{VocabularySize: 3, Sentences: []Sentence{{1, 2}}}
	target := &Text{VocabularySize: 3, Sentences: []Sentence{{1}}}
	ta, err := NewAlignmentState(source, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ta.Links[0][0] = 1

	dir := t.TempDir()
	path := dir + "/links.txt"
	if err := WriteMoses(path, ta, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading back file: %v", err)
	}
	want := "0-1\n"
	if string(contents) != want {
		t.Errorf("expected %q; got %q", want, string(contents))
	}
}

func TestWriteStatsHeaderAndLength(t *testing.T) {
	source, target := smallCorpus()
	ta, err := NewAlignmentState(source, target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ta.Model = Model2
	rng := NewRandState(1)
	ta.Randomize(&rng)
	ta.MakeCounts()

	dir := t.TempDir()
	path := dir + "/stats.txt"
	if err := WriteStats(path, ta); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading back file: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	if len(lines) != JumpArrayLen+1 {
		t.Fatalf("expected %d lines; got %d", JumpArrayLen+1, len(lines))
	}
	if lines[0] != "2048" {
		t.Errorf("expected header line %q; got %q", "2048", lines[0])
	}
}

func TestWriteScores(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/scores.txt"
	scores := []Count{1.5, -2, 0}
	if err := WriteScores(path, scores); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("error reading back file: %v", err)
	}
	want := "1.5\n-2\n0\n"
	if string(contents) != want {
		t.Errorf("expected %q; got %q", want, string(contents))
	}
}

func TestRoundToInt(t *testing.T) {
	for _, tc := range []struct {
		In   Count
		Want int
	}{
		{0.4, 0}, {0.5, 1}, {1.6, 2}, {-0.5, -1}, {-1.6, -2},
	} {
		if got := roundToInt(tc.In); got != tc.Want {
			t.Errorf("roundToInt(%g): expected %d; got %d", tc.In, tc.Want, got)
		}
	}
}
