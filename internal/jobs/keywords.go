package jobs

import "github.com/finsight/reportminer/internal/model"

// Keyword is the per-metric payload returned to API clients, keyed by
// metric name in the report result.
type Keyword struct {
	Value            string      `json:"value"`
	ValueLastYear    string      `json:"value_lastyear,omitempty"`
	ValueBefore2Year string      `json:"value_before2year,omitempty"`
	YoY              string      `json:"YoY,omitempty"`
	YoYD             string      `json:"YoY_D,omitempty"`
	Unit             string      `json:"unit,omitempty"`
	Year             string      `json:"year,omitempty"`
	Type             string      `json:"type,omitempty"`
	Company          string      `json:"company,omitempty"`
	Confidence       int         `json:"confidence"`
	Support          []string    `json:"support"`
	PageID           int         `json:"page_id"`
	ParaID           int         `json:"para_id"`
	BBox             *model.BBox `json:"bbox,omitempty"`
}

// BuildKeywords reshapes merged records into the metric-name-keyed map the
// retrieval API serves. When two companies report the same metric name, the
// higher-confidence record wins the key.
func BuildKeywords(records []model.MergedRecord) map[string]Keyword {
	out := make(map[string]Keyword, len(records))
	for _, r := range records {
		if prev, ok := out[r.MetricName]; ok && prev.Confidence >= r.Confidence {
			continue
		}
		out[r.MetricName] = Keyword{
			Value:            r.Value,
			ValueLastYear:    r.ValueLastYear,
			ValueBefore2Year: r.ValueBefore2Year,
			YoY:              r.YoY,
			YoYD:             r.YoYD,
			Unit:             r.Unit,
			Year:             r.Year,
			Type:             r.Type,
			Company:          r.Company,
			Confidence:       r.Confidence,
			Support:          r.Support,
			PageID:           r.PageID,
			ParaID:           r.ParaID,
			BBox:             r.BBox,
		}
	}
	return out
}
