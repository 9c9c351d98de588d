package backend

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/finsight/reportminer/internal/model"
)

// candidateSchemaJSON validates one canonical entry after alias mapping.
// Entries failing validation are dropped individually; siblings in the same
// reply are unaffected.
const candidateSchemaJSON = `{
	"type": "object",
	"required": ["metric_name", "value"],
	"properties": {
		"metric_name":       {"type": "string", "minLength": 1},
		"value":             {"type": "string", "minLength": 1},
		"value_lastyear":    {"type": "string"},
		"value_before2year": {"type": "string"},
		"YoY":               {"type": "string"},
		"YoY_D":             {"type": "string"},
		"unit":              {"type": "string"},
		"year":              {"type": "string"},
		"type":              {"type": "string"},
		"company":           {"type": "string"},
		"page_id":           {"type": "integer", "minimum": 0},
		"para_id":           {"type": "integer", "minimum": 0},
		"bbox":              {"type": "array", "items": {"type": "number"}, "minItems": 4, "maxItems": 4}
	}
}`

var candidateSchema = jsonschema.MustCompileString("candidate.json", candidateSchemaJSON)

// fieldAliases maps the canonical entry keys to the ad hoc spellings seen
// across backends. First match wins.
var fieldAliases = map[string][]string{
	"metric_name":       {"metric_name", "metric", "name"},
	"value":             {"value", "val", "amount"},
	"value_lastyear":    {"value_lastyear", "value_last_year", "last_year_value"},
	"value_before2year": {"value_before2year", "value_before_2year", "two_years_ago_value"},
	"YoY":               {"YoY", "yoy", "yoy_rate", "yoy_growth"},
	"YoY_D":             {"YoY_D", "yoy_d", "yoy_delta", "yoy_change"},
	"unit":              {"unit", "units"},
	"year":              {"year", "fiscal_year"},
	"type":              {"type", "value_type"},
	"company":           {"company", "company_name"},
	"page_id":           {"page_id", "page"},
	"para_id":           {"para_id", "paragraph_id", "para"},
	"bbox":              {"bbox", "bounding_box"},
}

// NormalizeJSON parses a reply that is (or contains) a JSON array of metric
// entries, mapping ad hoc field names onto the canonical shape. An error
// here means the whole reply was unusable; it is recorded as a skip.
func NormalizeJSON(raw string) ([]map[string]any, error) {
	arr, err := extractJSONArray(raw)
	if err != nil {
		return nil, err
	}
	return canonicalize(arr), nil
}

// normalizeGemini additionally unwraps the {"metrics": [...]} envelope that
// Gemini tends to produce for array-valued answers.
func normalizeGemini(raw string) ([]map[string]any, error) {
	text := stripFences(raw)
	var envelope struct {
		Metrics []map[string]any `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(text), &envelope); err == nil && envelope.Metrics != nil {
		return canonicalize(envelope.Metrics), nil
	}
	return NormalizeJSON(raw)
}

// Candidates validates canonical entries and converts the well-formed ones
// into candidate records stamped with backend, round, and chunk identity.
// Malformed entries (missing metric name, unusable value) are dropped.
func Candidates(entries []map[string]any, chunk model.Chunk, round model.Round, backendID string) []model.CandidateRecord {
	out := make([]model.CandidateRecord, 0, len(entries))
	for _, entry := range entries {
		if err := candidateSchema.Validate(toJSONValue(entry)); err != nil {
			zap.L().Debug("backend: dropping malformed entry",
				zap.String("backend", backendID),
				zap.Int("chunk", chunk.Index),
				zap.Error(err),
			)
			continue
		}

		rec := model.CandidateRecord{
			MetricName:       stringField(entry, "metric_name"),
			Value:            stringField(entry, "value"),
			ValueLastYear:    stringField(entry, "value_lastyear"),
			ValueBefore2Year: stringField(entry, "value_before2year"),
			YoY:              stringField(entry, "YoY"),
			YoYD:             stringField(entry, "YoY_D"),
			Unit:             stringField(entry, "unit"),
			Year:             stringField(entry, "year"),
			Type:             stringField(entry, "type"),
			Company:          stringField(entry, "company"),
			BackendID:        backendID,
			Round:            round,
			ChunkIndex:       chunk.Index,
		}

		rec.PageID, rec.ParaID = provenance(entry, chunk)
		if bbox, ok := entry["bbox"].([]float64); ok && len(bbox) == 4 {
			rec.BBox = &model.BBox{bbox[0], bbox[1], bbox[2], bbox[3]}
		} else if u := unitAt(chunk, rec.PageID, rec.ParaID); u != nil {
			rec.BBox = u.BBox
		}

		out = append(out, rec)
	}
	return out
}

// canonicalize renames each entry's keys to the canonical set and coerces
// scalar values to strings and positions to ints.
func canonicalize(arr []map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, raw := range arr {
		entry := make(map[string]any, len(fieldAliases))
		for canon, aliases := range fieldAliases {
			for _, alias := range aliases {
				v, ok := lookupKey(raw, alias)
				if !ok || v == nil {
					continue
				}
				switch canon {
				case "page_id", "para_id":
					if n, ok := toInt(v); ok {
						entry[canon] = n
					}
				case "bbox":
					if box, ok := toFloatSlice(v); ok {
						entry[canon] = box
					}
				default:
					if s := toString(v); s != "" {
						entry[canon] = s
					}
				}
				break
			}
		}
		out = append(out, entry)
	}
	return out
}

func provenance(entry map[string]any, chunk model.Chunk) (pageID, paraID int) {
	page, pageOK := entry["page_id"].(int)
	para, paraOK := entry["para_id"].(int)
	if pageOK && paraOK && chunk.Covers(page, para) {
		return page, para
	}
	// Fall back to the chunk's first paragraph when the backend echoed
	// nothing usable.
	if len(chunk.Units) > 0 {
		return chunk.Units[0].PageID, chunk.Units[0].ParaID
	}
	return 0, 0
}

func unitAt(chunk model.Chunk, pageID, paraID int) *model.ParagraphUnit {
	for i := range chunk.Units {
		if chunk.Units[i].PageID == pageID && chunk.Units[i].ParaID == paraID {
			return &chunk.Units[i]
		}
	}
	return nil
}

// lookupKey is case-insensitive on the first letter groupings backends use
// (YoY vs yoy); exact match is tried first.
func lookupKey(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func stringField(entry map[string]any, key string) string {
	s, _ := entry[key].(string)
	return s
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return ""
	}
}

func toInt(v any) (int, bool) {
	switch t := v.(type) {
	case float64:
		if t < 0 || t != float64(int(t)) {
			return 0, false
		}
		return int(t), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

func toFloatSlice(v any) ([]float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return nil, false
	}
	out := make([]float64, 4)
	for i, e := range arr {
		f, ok := e.(float64)
		if !ok {
			return nil, false
		}
		out[i] = f
	}
	return out, true
}

// toJSONValue converts a canonical entry back to the generic form the
// schema validator expects (int → json number, []float64 → []any).
func toJSONValue(entry map[string]any) any {
	out := make(map[string]any, len(entry))
	for k, v := range entry {
		switch t := v.(type) {
		case int:
			out[k] = json.Number(strconv.Itoa(t))
		case []float64:
			arr := make([]any, len(t))
			for i, f := range t {
				arr[i] = json.Number(strconv.FormatFloat(f, 'f', -1, 64))
			}
			out[k] = arr
		default:
			out[k] = v
		}
	}
	return out
}

// extractJSONArray finds and parses the first JSON array in text, tolerating
// markdown fences and surrounding prose.
func extractJSONArray(raw string) ([]map[string]any, error) {
	text := stripFences(raw)

	var direct []map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	start := strings.IndexByte(text, '[')
	if start < 0 {
		return nil, eris.Errorf("backend: no JSON array in reply (%d bytes)", len(raw))
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '[':
			depth++
		case c == ']':
			depth--
			if depth == 0 {
				var arr []map[string]any
				if err := json.Unmarshal([]byte(text[start:i+1]), &arr); err != nil {
					return nil, eris.Wrap(err, "backend: parse embedded array")
				}
				return arr, nil
			}
		}
	}
	return nil, eris.New("backend: unterminated JSON array in reply")
}

func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if end := strings.LastIndex(text, "```"); end >= 0 {
			text = text[:end]
		}
		text = strings.TrimSpace(text)
	}
	return text
}
