// Package score computes a 0-100 trustworthiness score for a merged record
// from backend agreement, field completeness, and cross-chunk corroboration.
package score

import (
	"math"

	"github.com/finsight/reportminer/internal/merge"
	"github.com/finsight/reportminer/internal/model"
)

// singleChunkCap limits the corroboration sub-score when only one chunk
// matched, so a single chunk cannot alone reach full marks on breadth.
const singleChunkCap = 0.8

// Weights are the sub-score weights. They should sum to 100; the final
// score is clamped to [0,100] regardless.
type Weights struct {
	Agreement    float64 // banded backend agreement
	Completeness float64 // optional-field completeness
	Breadth      float64 // cross-chunk corroboration
}

// DefaultWeights returns the 90/5/5 split: agreement dominates, with
// completeness and breadth acting as small bonuses on top of it.
func DefaultWeights() Weights {
	return Weights{Agreement: 90, Completeness: 5, Breadth: 5}
}

// Inputs is the corroboration context for one merged record.
type Inputs struct {
	TotalBackends  int
	MatchingChunks int // chunks that produced a candidate matching the elected value
	CoveringChunks int // chunks whose window covers the provenance paragraph
}

// Score computes the weighted confidence for rec. Deterministic, never
// errors: absent optional fields and zero denominators score zero on the
// corresponding sub-term.
func (w Weights) Score(rec model.MergedRecord, in Inputs) int {
	var agreement float64
	if in.TotalBackends > 0 && len(rec.Support) > 0 {
		agreement = agreementBand(float64(len(rec.Support))/float64(in.TotalBackends)) / 100
	}

	optional := []string{rec.Unit, rec.Year, rec.ValueLastYear, rec.YoY}
	filled := 0
	for _, v := range optional {
		if v != "" {
			filled++
		}
	}
	completeness := float64(filled) / float64(len(optional))

	var breadth float64
	if in.CoveringChunks > 0 {
		breadth = float64(in.MatchingChunks) / float64(in.CoveringChunks)
	}
	if in.MatchingChunks <= 1 && breadth > singleChunkCap {
		breadth = singleChunkCap
	}

	total := agreement*w.Agreement + completeness*w.Completeness + breadth*w.Breadth
	s := int(math.Round(total))
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// agreementBand maps the backend vote ratio onto a base sub-score. The
// mapping is banded rather than linear: unanimity is worth the full 100,
// and a bare majority still lands at 55+, so a record every backend agrees
// on scores high even when the backends reported nothing but a value.
// Continuous at band boundaries and monotone in the ratio.
func agreementBand(ratio float64) float64 {
	switch {
	case ratio >= 1:
		return 100
	case ratio >= 0.8:
		return 85 + (ratio-0.8)*50 // 85-95
	case ratio >= 0.6:
		return 70 + (ratio-0.6)*75 // 70-85
	case ratio >= 0.5:
		return 55 + (ratio-0.5)*150 // 55-70
	default:
		return 30 + ratio*50 // 30-55
	}
}

// Corroboration derives the breadth inputs for rec: how many chunks cover
// its provenance paragraph, and how many of those produced a candidate in
// the same group whose value matches the elected one.
func Corroboration(rec model.MergedRecord, candidates []model.CandidateRecord, chunks []model.Chunk) (matching, covering int) {
	coveringIdx := make(map[int]bool)
	for _, c := range chunks {
		if c.Covers(rec.PageID, rec.ParaID) {
			coveringIdx[c.Index] = true
		}
	}

	elected := merge.NormalizeValue(rec.Value)
	matchedIdx := make(map[int]bool)
	for _, cand := range candidates {
		if !merge.Matches(cand, rec) {
			continue
		}
		if !coveringIdx[cand.ChunkIndex] {
			continue
		}
		if merge.NormalizeValue(cand.Value) != elected {
			continue
		}
		matchedIdx[cand.ChunkIndex] = true
	}
	return len(matchedIdx), len(coveringIdx)
}
