package engine

import (
	"errors"
	"fmt"
)

// Chunk sizing defaults. They bound the prompt size of each summarize call.
const (
	DefaultChunkSize    = 8000
	DefaultChunkOverlap = 1000
)

// Split point preference, strongest first. A separator stays at the end of
// the chunk it terminates so no character is lost between windows.
var boundaryTiers = [][]string{
	{"\n\n"},
	{". ", "! ", "? ", "\n"},
	{" ", "\t"},
}

// Chunker splits text into overlapping windows measured in characters (runes).
type Chunker struct {
	Size    int
	Overlap int
}

// DefaultChunker returns a Chunker with DefaultChunkSize and DefaultChunkOverlap.
func DefaultChunker() Chunker {
	return Chunker{Size: DefaultChunkSize, Overlap: DefaultChunkOverlap}
}

// NewChunker returns a validated Chunker.
func NewChunker(size, overlap int) (Chunker, error) {
	c := Chunker{Size: size, Overlap: overlap}
	if err := c.Validate(); err != nil {
		return Chunker{}, err
	}
	return c, nil
}

// Validate reports whether the window is usable: a positive size and an
// overlap in [0, size).
func (c Chunker) Validate() error {
	if c.Size <= 0 {
		return fmt.Errorf("chunker: size must be positive, got %d", c.Size)
	}
	if c.Overlap < 0 {
		return errors.New("chunker: overlap must not be negative")
	}
	if c.Overlap >= c.Size {
		return fmt.Errorf("chunker: overlap %d must be smaller than size %d", c.Overlap, c.Size)
	}
	return nil
}

// Split validates the chunker and splits text with its settings.
func (c Chunker) Split(text string) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return SplitText(text, c.Size, c.Overlap), nil
}

// SplitText splits text into consecutive windows of at most maxSize characters.
// Every window after the first starts exactly overlap characters before the
// previous window's end, so c0 + c1[overlap:] + c2[overlap:] ... == text.
// Window ends prefer a paragraph break, then a sentence end, then a word
// boundary, and fall back to a hard cut.
//
// SplitText panics if maxSize and overlap fail Chunker.Validate; use
// NewChunker or Chunker.Split for caller-supplied values.
func SplitText(text string, maxSize, overlap int) []string {
	if err := (Chunker{Size: maxSize, Overlap: overlap}).Validate(); err != nil {
		panic(err)
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return []string{}
	}
	if n <= maxSize {
		return []string{text}
	}

	var chunks []string
	start, prev := 0, -1
	for start < n && start > prev {
		end := start + maxSize
		if end >= n {
			end = n
		} else {
			end = splitPoint(runes, start+overlap, end)
		}
		chunks = append(chunks, string(runes[start:end]))
		prev = start
		start = end - overlap
	}
	return chunks
}

// splitPoint picks the window end in (lo, hi]. Candidates in a stronger tier
// win over weaker ones; within a tier the latest candidate wins.
func splitPoint(runes []rune, lo, hi int) int {
	for _, tier := range boundaryTiers {
		best := -1
		for _, sep := range tier {
			if p := lastBoundary(runes, sep, lo, hi); p > best {
				best = p
			}
		}
		if best > lo {
			return best
		}
	}
	return hi
}

// lastBoundary returns the largest p in (lo, hi] such that runes[:p] ends with sep, or -1.
func lastBoundary(runes []rune, sep string, lo, hi int) int {
	s := []rune(sep)
	for p := hi; p > lo; p-- {
		if p < len(s) {
			break
		}
		if hasSuffixAt(runes, s, p) {
			return p
		}
	}
	return -1
}

func hasSuffixAt(runes, sep []rune, p int) bool {
	off := p - len(sep)
	for i, r := range sep {
		if runes[off+i] != r {
			return false
		}
	}
	return true
}
