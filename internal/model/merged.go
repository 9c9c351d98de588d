package model

// MergedRecord is the reconciled, de-duplicated output for one
// (company, metric_name) pair after cross-chunk, cross-backend voting.
// Support holds the backend ids whose vote matched the elected primary
// value; Notes flags ties and partial agreement per field.
type MergedRecord struct {
	Company          string   `json:"company"`
	MetricName       string   `json:"metric_name"`
	Value            string   `json:"value"`
	ValueLastYear    string   `json:"value_lastyear,omitempty"`
	ValueBefore2Year string   `json:"value_before2year,omitempty"`
	YoY              string   `json:"YoY,omitempty"`
	YoYD             string   `json:"YoY_D,omitempty"`
	Unit             string   `json:"unit,omitempty"`
	Year             string   `json:"year,omitempty"`
	Type             string   `json:"type,omitempty"`
	Confidence       int      `json:"confidence"`
	Support          []string `json:"support"`
	Notes            []string `json:"notes,omitempty"`
	PageID           int      `json:"page_id"`
	ParaID           int      `json:"para_id"`
	BBox             *BBox    `json:"bbox,omitempty"`
}
