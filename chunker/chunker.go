package chunker

import (
	"errors"
	"strings"
)

const (
	// DefaultChunkSize is the window size in words used for document ingestion
	DefaultChunkSize = 500
	// DefaultOverlap is the number of words shared between consecutive windows
	DefaultOverlap = 125
)

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
	ErrInvalidOverlap   = errors.New("overlap must be non-negative and smaller than chunk size")
)

// Chunk is one window of a document's text
type Chunk struct {
	Index      int
	Text       string
	WordOffset int
	TokenCount int
}

// Chunker splits document text into overlapping fixed-stride windows of
// words. Splitting is deterministic and stateless, so one Chunker can be
// shared across goroutines.
type Chunker struct {
	chunkSize int
	overlap   int
}

// New creates a Chunker. An overlap equal to or larger than the chunk size
// would stall the window walk, so it is rejected here rather than at split
// time.
func New(chunkSize, overlap int) (*Chunker, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, ErrInvalidOverlap
	}
	return &Chunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// ChunkSize returns the configured window size in words
func (c *Chunker) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap in words
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split cuts text into windows of up to chunkSize words, each window
// starting chunkSize-overlap words after the previous one. Empty text
// yields no chunks. Text shorter than one window yields a single chunk.
//
// A tail of at most overlap words would repeat words the previous window
// already carries while adding almost nothing new, so the final window is
// extended to the end of the text instead of emitting such a sliver. A tail
// longer than the overlap still becomes its own shorter final chunk.
func (c *Chunker) Split(text string) []Chunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	stride := c.chunkSize - c.overlap
	var chunks []Chunk
	for start := 0; start < len(words); start += stride {
		end := start + c.chunkSize
		if end > len(words) {
			end = len(words)
		} else if len(words)-end <= c.overlap {
			end = len(words)
		}

		chunks = append(chunks, Chunk{
			Index:      len(chunks),
			Text:       strings.Join(words[start:end], " "),
			WordOffset: start,
			TokenCount: end - start,
		})

		if end == len(words) {
			break
		}
	}
	return chunks
}
