package backend

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/finsight/reportminer/internal/model"
)

// metricLine matches "Name: 1,234.56 unit" style statements the mock
// backend treats as metrics. Good enough for offline runs and tests.
var metricLine = regexp.MustCompile(`(?m)^\s*([^:\n]{2,60}):\s*([0-9][0-9.,]*)\s*(\S*)`)

// MockBackend is a deterministic offline backend: it "extracts" metrics
// from simple "Name: value unit" lines in the chunk context. It exists so
// the pipeline can run end to end without API keys, mirroring the real
// backends' reply shape exactly.
type MockBackend struct {
	id string
}

// NewMock creates a mock backend with the given id.
func NewMock(id string) *MockBackend {
	return &MockBackend{id: id}
}

func (b *MockBackend) ID() string { return b.id }

func (b *MockBackend) Complete(_ context.Context, prompt string) (string, error) {
	// Verify rounds have nothing to add: the extract pass already found
	// every matching line.
	if strings.Contains(prompt, "Metrics found so far") {
		return "[]", nil
	}

	var entries []map[string]any
	for _, line := range strings.Split(prompt, "\n") {
		page, para, text, ok := splitProvenance(line)
		if !ok {
			continue
		}
		m := metricLine.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		entries = append(entries, map[string]any{
			"metric_name": strings.TrimSpace(m[1]),
			"value":       m[2],
			"unit":        m[3],
			"type":        model.TypeActual,
			"page_id":     page,
			"para_id":     para,
		})
	}
	if entries == nil {
		return "[]", nil
	}
	out, err := json.Marshal(entries)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

var provenanceMarker = regexp.MustCompile(`^\[(\d+):(\d+)\]\s?(.*)$`)

func splitProvenance(line string) (page, para int, text string, ok bool) {
	m := provenanceMarker.FindStringSubmatch(line)
	if m == nil {
		return 0, 0, "", false
	}
	page = atoi(m[1])
	para = atoi(m[2])
	return page, para, m[3], true
}

func atoi(s string) int {
	n := 0
	for _, c := range s {
		n = n*10 + int(c-'0')
	}
	return n
}
