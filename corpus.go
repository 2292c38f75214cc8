package eflomal

import (
	"bufio"
	"fmt"
	"io"

	"github.com/golang/glog"
	"github.com/kho/easy"
)

// Sentence is an ordered sequence of internal token ids. A zero-length
// Sentence (nil or not) denotes an empty slot: the sentence pair at that
// index is skipped entirely.
type Sentence []Token

// Text is a parallel-corpus side: an ordered sequence of sentences sharing
// a fixed vocabulary size.
type Text struct {
	VocabularySize Token
	Sentences      []Sentence
}

// ReadText parses the numeric corpus format (spec.md §6): a header line
// "<n_sentences> <vocabulary_size>" followed by one "<length> tok..." line
// per sentence. On-disk token ids are 0-based; they are shifted by +1 on
// the way in so that internal id 0 is reserved for NULL.
func ReadText(path string) (*Text, error) {
	f, err := easy.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ReadText(%q): %w", path, err)
	}
	defer f.Close()
	return readText(f, path)
}

func readText(r io.Reader, path string) (*Text, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, fmt.Errorf("ReadText(%q): failed to read header", path)
	}
	var nSentences int
	var vocab Token
	if _, err := fmt.Sscan(scanner.Text(), &nSentences, &vocab); err != nil {
		return nil, fmt.Errorf("ReadText(%q): failed to read header: %w", path, err)
	}
	// Type 0 is reserved for NULL, so the on-disk vocabulary size (which
	// counts only real tokens) is bumped by one to cover it.
	vocab++

	text := &Text{VocabularySize: vocab, Sentences: make([]Sentence, nSentences)}
	for i := 0; i < nSentences; i++ {
		if !scanner.Scan() {
			return nil, fmt.Errorf("ReadText(%q): line %d: unexpected EOF", path, i+2)
		}
		fields := splitFields(scanner.Text())
		if len(fields) == 0 {
			return nil, fmt.Errorf("ReadText(%q): line %d: missing sentence length", path, i+2)
		}
		var length int
		if _, err := fmt.Sscan(fields[0], &length); err != nil {
			return nil, fmt.Errorf("ReadText(%q): line %d: bad length: %w", path, i+2, err)
		}
		if length > MaxSentLen {
			return nil, fmt.Errorf("ReadText(%q): line %d: sentence length %d exceeds %d", path, i+2, length, MaxSentLen)
		}
		if len(fields)-1 < length {
			return nil, fmt.Errorf("ReadText(%q): line %d: expected %d tokens, got %d", path, i+2, length, len(fields)-1)
		}
		sent := make(Sentence, length)
		for j := 0; j < length; j++ {
			var tok uint32
			if _, err := fmt.Sscan(fields[j+1], &tok); err != nil {
				return nil, fmt.Errorf("ReadText(%q): line %d: bad token: %w", path, i+2, err)
			}
			shifted := Token(tok) + 1
			if shifted >= vocab {
				return nil, fmt.Errorf("ReadText(%q): line %d: token %d out of bounds for vocabulary size %d", path, i+2, tok, vocab-1)
			}
			sent[j] = shifted
		}
		text.Sentences[i] = sent
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ReadText(%q): %w", path, err)
	}
	return text, nil
}

// WriteText serialises a Text back to the numeric corpus format, shifting
// internal token ids back down by one. NULL is a sampler-internal concept
// and never legitimately occurs in a source/target corpus file; a NULL
// token (internal id 0) is logged as a warning and written as 0 minus one,
// wrapped to 4294967295.
func WriteText(path string, text *Text) error {
	w := easy.MustCreate(path)
	defer w.Close()
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d\n", len(text.Sentences), text.VocabularySize)
	for _, sent := range text.Sentences {
		fmt.Fprintf(bw, "%d", len(sent))
		for _, tok := range sent {
			if tok == 0 {
				glog.Warningf("WriteText(%q): NULL token in output sentence", path)
			}
			fmt.Fprintf(bw, " %d", tok-1)
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// splitFields splits on spaces, tabs and carriage returns without
// allocating a regexp; the
// corpus format's lines are short, fixed-arity token lists.
func splitFields(s string) []string {
	var fields []string
	start := -1
	for i, r := range s {
		if r == ' ' || r == '\t' || r == '\r' {
			if start >= 0 {
				fields = append(fields, s[start:i])
				start = -1
			}
		} else if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		fields = append(fields, s[start:])
	}
	return fields
}
