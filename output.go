package eflomal

import (
	"bufio"
	"fmt"

	"github.com/kho/easy"
)

// WriteMoses writes one line per target sentence: space-separated "i-j"
// links (source position - target position, or transposed when reverse is
// set), and an empty line for a skipped pair (spec.md §6).
func WriteMoses(path string, ta *AlignmentState, reverse bool) error {
	w := easy.MustCreate(path)
	defer w.Close()
	bw := bufio.NewWriter(w)
	for sent, links := range ta.Links {
		if links == nil {
			bw.WriteByte('\n')
			continue
		}
		first := true
		for j, link := range links {
			if link == NullLink {
				continue
			}
			i := int(link)
			if !first {
				bw.WriteByte(' ')
			}
			if reverse {
				fmt.Fprintf(bw, "%d-%d", j, i)
			} else {
				fmt.Fprintf(bw, "%d-%d", i, j)
			}
			first = false
		}
		bw.WriteByte('\n')
		_ = sent
	}
	return bw.Flush()
}

// WriteStats writes the jump histogram: "2048\n" followed by 2048 lines,
// each the rounded (count - JUMP_ALPHA) for that bucket (spec.md §6).
func WriteStats(path string, ta *AlignmentState) error {
	w := easy.MustCreate(path)
	defer w.Close()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", JumpArrayLen)
	for i := 0; i < JumpArrayLen; i++ {
		fmt.Fprintf(bw, "%d\n", roundToInt(ta.JumpCounts[i]-JumpAlpha))
	}
	return bw.Flush()
}

// WriteScores writes one float per line, each scores[i] exactly as given.
// Driver.ScoreCorpus already negates its per-position log terms, so the
// values it returns are written here unchanged.
func WriteScores(path string, scores []Count) error {
	w := easy.MustCreate(path)
	defer w.Close()
	bw := bufio.NewWriter(w)
	for _, s := range scores {
		fmt.Fprintf(bw, "%g\n", s)
	}
	return bw.Flush()
}

func roundToInt(x Count) int {
	if x >= 0 {
		return int(x + 0.5)
	}
	return -int(-x + 0.5)
}
