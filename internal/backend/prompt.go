package backend

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/finsight/reportminer/internal/model"
)

const extractPrompt = `You are a financial analyst extracting metrics from a report excerpt.

Identify every financial metric and its value(s) in the text below, including
year-over-year and multi-year comparison values if present.

Return a JSON array. Each element:
{"metric_name": "<name as written>", "value": "<current value>",
 "value_lastyear": "<prior-year value or empty>",
 "value_before2year": "<value two years back or empty>",
 "YoY": "<year-over-year growth rate or empty>",
 "YoY_D": "<year-over-year absolute change or empty>",
 "unit": "<unit or empty>", "year": "<fiscal year or empty>",
 "type": "<actual|forecast|budget>", "company": "<company the metric belongs to>",
 "page_id": <page number>, "para_id": <paragraph number>}

Text (each paragraph prefixed with [page:paragraph]):
%s

Return only the JSON array. Return [] if the text contains no metrics.`

const verifyPrompt = `You are a financial analyst double-checking an extraction pass.

The text below was already processed; the metrics found so far follow it.
Report ONLY omissions and corrections: metrics missing from the list, or
entries whose value you believe is wrong (return the corrected entry).
Do not repeat entries you agree with.

Text (each paragraph prefixed with [page:paragraph]):
%s

Metrics found so far:
%s

Return only a JSON array in the same shape as the findings above. Return []
if you have nothing to add.`

// BuildExtractPrompt renders the round-1 prompt for a chunk.
func BuildExtractPrompt(chunk model.Chunk) string {
	return fmt.Sprintf(extractPrompt, chunkContext(chunk))
}

// BuildVerifyPrompt renders the round-2 prompt: the chunk text plus the
// round-1 candidates already found for it.
func BuildVerifyPrompt(chunk model.Chunk, prior []model.CandidateRecord) string {
	found, err := json.Marshal(prior)
	if err != nil {
		found = []byte("[]")
	}
	return fmt.Sprintf(verifyPrompt, chunkContext(chunk), found)
}

// chunkContext renders paragraphs with their provenance markers so backends
// can echo page_id/para_id back.
func chunkContext(chunk model.Chunk) string {
	var b strings.Builder
	for i, u := range chunk.Units {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d:%d] %s", u.PageID, u.ParaID, u.Text)
	}
	return b.String()
}
