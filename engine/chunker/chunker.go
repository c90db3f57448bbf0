// Package chunker splits extracted text into overlapping fixed-size windows
// for embedding and retrieval. Windows are measured in runes so that the
// concatenation of windows with overlaps removed reconstructs the input
// exactly.
package chunker

import (
	"fmt"
	"iter"
)

const (
	// DefaultSize is the default window size in runes.
	DefaultSize = 1000
	// DefaultOverlap is the default number of runes shared by adjacent windows.
	DefaultOverlap = 200
)

// Chunker produces overlapping windows over a text. It is stateless: calls
// to Split never interfere with each other.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Size must be positive and overlap must be
// non-negative and strictly less than size, otherwise the window sequence
// would not advance.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunker: size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("chunker: overlap must be non-negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("chunker: overlap %d must be less than size %d", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the overlap between adjacent windows in runes.
func (c *Chunker) Overlap() int { return c.overlap }

// Split lazily yields consecutive windows of up to Size runes, each starting
// Size-Overlap runes after the previous one. The final window may be shorter
// than Size; no padding is added. Text shorter than Size yields exactly one
// window equal to the whole text; empty text yields nothing. The sequence is
// restartable: ranging over it twice yields the same windows.
func (c *Chunker) Split(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		runes := []rune(text)
		if len(runes) == 0 {
			return
		}
		step := c.size - c.overlap
		for start := 0; ; start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			if !yield(string(runes[start:end])) {
				return
			}
			if end == len(runes) {
				return
			}
		}
	}
}

// SplitAll collects Split into a slice.
func (c *Chunker) SplitAll(text string) []string {
	var out []string
	for w := range c.Split(text) {
		out = append(out, w)
	}
	return out
}

// Count returns the number of windows Split produces for a text of n runes:
// ceil((n-overlap)/(size-overlap)) for n > size, 1 for 0 < n <= size, and 0
// for empty text.
func (c *Chunker) Count(n int) int {
	if n == 0 {
		return 0
	}
	if n <= c.size {
		return 1
	}
	step := c.size - c.overlap
	return (n - c.overlap + step - 1) / step
}
