// Package chunker splits an ordered paragraph-unit sequence into
// overlapping windows for backend extraction.
package chunker

import (
	"github.com/rotisserie/eris"

	"github.com/finsight/reportminer/internal/model"
)

// ErrChunkConfig marks invalid chunk parameters. It is returned before any
// job is created; callers should reject the configuration outright.
var ErrChunkConfig = eris.New("chunker: invalid chunk configuration")

// Validate checks chunk parameters without producing chunks.
func Validate(size, overlap int) error {
	if size <= 0 {
		return eris.Wrapf(ErrChunkConfig, "size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return eris.Wrapf(ErrChunkConfig, "overlap must satisfy 0 <= overlap < size, got overlap=%d size=%d", overlap, size)
	}
	return nil
}

// MakeChunks windows units into chunks of size paragraphs where consecutive
// chunks share exactly overlap paragraphs. Chunk i starts at i*(size-overlap);
// the tail chunk may be shorter. The union of all chunks covers every unit.
// Empty input yields zero chunks and no error. Deterministic and pure.
func MakeChunks(units []model.ParagraphUnit, size, overlap int) ([]model.Chunk, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return nil, nil
	}

	step := size - overlap
	var chunks []model.Chunk
	for start := 0; ; start += step {
		end := start + size
		if end > len(units) {
			end = len(units)
		}
		chunks = append(chunks, model.Chunk{
			Index:     len(chunks),
			StartPara: start,
			EndPara:   end - 1,
			Units:     units[start:end],
		})
		if end == len(units) {
			break
		}
	}
	return chunks, nil
}
