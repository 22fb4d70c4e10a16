package chunking

import (
	"iter"
	"strings"

	"github.com/kirillkom/knowledge-assistant/internal/core/domain"
)

const (
	DefaultWindowSize = 500
	DefaultOverlap    = 50
)

// Splitter cuts text into overlapping windows of whitespace-delimited words.
type Splitter struct {
	WindowSize int
	Overlap    int
}

func NewSplitter(windowSize, overlap int) *Splitter {
	if windowSize <= 0 {
		windowSize = DefaultWindowSize
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Splitter{
		WindowSize: windowSize,
		Overlap:    overlap,
	}
}

// Split collects every window of text.
func (s *Splitter) Split(text string) []domain.Chunk {
	var out []domain.Chunk
	for chunk := range s.Windows(text) {
		out = append(out, chunk)
	}
	return out
}

// Windows yields the windows of text lazily. The sequence holds no state
// between iterations, so ranging over it twice yields the same chunks.
func (s *Splitter) Windows(text string) iter.Seq[domain.Chunk] {
	return func(yield func(domain.Chunk) bool) {
		words := strings.Fields(text)
		if len(words) == 0 {
			return
		}

		// step is at least one word even when overlap >= window size.
		step := max(s.WindowSize-s.Overlap, 1)
		overlap := min(s.Overlap, s.WindowSize-1)

		seq := 0
		for start := 0; start < len(words); start += step {
			end := min(start+s.WindowSize, len(words))
			chunk := domain.Chunk{
				Sequence:  seq,
				Start:     start,
				End:       end,
				WordCount: end - start,
				Text:      strings.Join(words[start:end], " "),
			}
			if seq > 0 {
				chunk.Overlap = overlap
			}
			if !yield(chunk) {
				return
			}
			if end == len(words) {
				return
			}
			seq++
		}
	}
}
