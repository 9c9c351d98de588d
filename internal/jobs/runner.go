package jobs

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/chunker"
	"github.com/finsight/reportminer/internal/extract"
	"github.com/finsight/reportminer/internal/merge"
	"github.com/finsight/reportminer/internal/model"
	"github.com/finsight/reportminer/internal/score"
)

// Pipeline runs one document through chunking, multi-backend extraction,
// voting merge, and confidence scoring.
type Pipeline struct {
	Orchestrator  *extract.Orchestrator
	ChunkSize     int
	ChunkOverlap  int
	TotalBackends int
	Weights       score.Weights
}

// Run executes the full pipeline on a parsed document. A document where
// every backend failed on every chunk completes with an empty result; only
// invalid input or cancellation is an error.
func (p *Pipeline) Run(ctx context.Context, doc model.Document) ([]model.MergedRecord, error) {
	chunks, err := chunker.MakeChunks(doc.Units, p.ChunkSize, p.ChunkOverlap)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: chunk document")
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	candidates, err := p.Orchestrator.ExtractAll(ctx, chunks)
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: extract")
	}

	records := merge.Merge(candidates)
	for i := range records {
		matching, covering := score.Corroboration(records[i], candidates, chunks)
		records[i].Confidence = p.Weights.Score(records[i], score.Inputs{
			TotalBackends:  p.TotalBackends,
			MatchingChunks: matching,
			CoveringChunks: covering,
		})
	}

	zap.L().Info("pipeline: document processed",
		zap.String("file", doc.FileName),
		zap.Int("chunks", len(chunks)),
		zap.Int("candidates", len(candidates)),
		zap.Int("metrics", len(records)),
	)
	return records, nil
}
