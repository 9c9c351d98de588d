package model

// Round identifies which extraction pass produced a candidate.
type Round string

const (
	RoundExtract Round = "extract"
	RoundVerify  Round = "verify"
)

// Value types reported by backends for a metric.
const (
	TypeActual   = "actual"
	TypeForecast = "forecast"
	TypeBudget   = "budget"
)

// CandidateRecord is one backend's one-round claim about one metric found in
// one chunk. Candidates are append-only: they are never mutated after
// creation, only aggregated by the merge engine.
type CandidateRecord struct {
	MetricName       string `json:"metric_name"`
	Value            string `json:"value"`
	ValueLastYear    string `json:"value_lastyear,omitempty"`
	ValueBefore2Year string `json:"value_before2year,omitempty"`
	YoY              string `json:"YoY,omitempty"`
	YoYD             string `json:"YoY_D,omitempty"`
	Unit             string `json:"unit,omitempty"`
	Year             string `json:"year,omitempty"`
	Type             string `json:"type,omitempty"`
	PageID           int    `json:"page_id"`
	ParaID           int    `json:"para_id"`
	BBox             *BBox  `json:"bbox,omitempty"`
	Company          string `json:"company,omitempty"`
	BackendID        string `json:"backend_id"`
	Round            Round  `json:"round"`
	ChunkIndex       int    `json:"chunk_index"`
}
