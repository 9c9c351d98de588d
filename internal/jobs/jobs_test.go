package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/reportminer/internal/backend"
	"github.com/finsight/reportminer/internal/extract"
	"github.com/finsight/reportminer/internal/model"
	"github.com/finsight/reportminer/internal/score"
	"github.com/finsight/reportminer/internal/store"
)

type failingBackend struct{ id string }

func (b *failingBackend) ID() string { return b.id }

func (b *failingBackend) Complete(context.Context, string) (string, error) {
	return "", errors.New("unreachable")
}

func testDocument() model.Document {
	return model.Document{
		FileName: "annual.pdf",
		Units: []model.ParagraphUnit{
			{PageID: 1, ParaID: 0, Text: "Corp A annual results follow."},
			{PageID: 1, ParaID: 1, Text: "Revenue: 1500 million"},
			{PageID: 1, ParaID: 2, Text: "Profit: 200 million"},
			{PageID: 2, ParaID: 3, Text: "Outlook remains stable."},
		},
	}
}

func testPipeline(t *testing.T, backends ...backend.Backend) *Pipeline {
	t.Helper()
	if len(backends) == 0 {
		backends = []backend.Backend{backend.NewMock("mock-a"), backend.NewMock("mock-b")}
	}
	orch, err := extract.New(backends, extract.Options{})
	require.NoError(t, err)
	return &Pipeline{
		Orchestrator:  orch,
		ChunkSize:     3,
		ChunkOverlap:  1,
		TotalBackends: len(backends),
		Weights:       score.DefaultWeights(),
	}
}

func testStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "jobs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func waitTerminal(t *testing.T, s store.Store, id string) *model.Report {
	t.Helper()
	var report *model.Report
	require.Eventually(t, func() bool {
		r, err := s.GetReport(context.Background(), id)
		if err != nil {
			return false
		}
		report = r
		return r.Status.Terminal()
	}, 5*time.Second, 10*time.Millisecond)
	return report
}

func TestPipeline_Run(t *testing.T) {
	p := testPipeline(t)

	records, err := p.Run(context.Background(), testDocument())
	require.NoError(t, err)
	require.NotEmpty(t, records)

	byName := make(map[string]model.MergedRecord)
	for _, r := range records {
		byName[r.MetricName] = r
	}
	rev, ok := byName["Revenue"]
	require.True(t, ok)
	assert.Equal(t, "1500", rev.Value)
	assert.Equal(t, "million", rev.Unit)
	// Both mock backends agree.
	assert.Len(t, rev.Support, 2)
	assert.Greater(t, rev.Confidence, 0)
	assert.LessOrEqual(t, rev.Confidence, 100)
}

func TestPipeline_Run_EmptyDocument(t *testing.T) {
	p := testPipeline(t)

	records, err := p.Run(context.Background(), model.Document{FileName: "empty.pdf"})
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPipeline_Run_InvalidChunkConfig(t *testing.T) {
	p := testPipeline(t)
	p.ChunkOverlap = p.ChunkSize

	_, err := p.Run(context.Background(), testDocument())
	assert.Error(t, err)
}

func TestProcessor_CompletesReport(t *testing.T) {
	s := testStore(t)
	p := NewProcessor(s, testPipeline(t), 2, 8)
	defer p.Close()

	report, err := p.Submit(context.Background(), testDocument())
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, report.Status)

	done := waitTerminal(t, s, report.ID)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.NotEmpty(t, done.Result)
}

func TestProcessor_AllBackendsFailStillCompletes(t *testing.T) {
	s := testStore(t)
	pipe := testPipeline(t, &failingBackend{id: "a"}, &failingBackend{id: "b"})
	p := NewProcessor(s, pipe, 1, 8)
	defer p.Close()

	report, err := p.Submit(context.Background(), testDocument())
	require.NoError(t, err)

	done := waitTerminal(t, s, report.ID)
	assert.Equal(t, model.StatusCompleted, done.Status)
	assert.Empty(t, done.Result)
}

func TestProcessor_PipelineErrorFailsWithMessage(t *testing.T) {
	s := testStore(t)
	pipe := testPipeline(t)
	pipe.ChunkOverlap = pipe.ChunkSize // invalid; surfaces in the worker
	p := NewProcessor(s, pipe, 1, 8)
	defer p.Close()

	report, err := p.Submit(context.Background(), testDocument())
	require.NoError(t, err)

	done := waitTerminal(t, s, report.ID)
	assert.Equal(t, model.StatusFailed, done.Status)
	assert.NotEmpty(t, done.Message)
}

func TestBuildKeywords(t *testing.T) {
	records := []model.MergedRecord{
		{MetricName: "Revenue", Company: "Corp A", Value: "1500", Unit: "million", Confidence: 90, PageID: 1, ParaID: 1, Support: []string{"claude", "gemini"}},
		{MetricName: "Revenue", Company: "Corp B", Value: "900", Confidence: 60},
		{MetricName: "Profit", Company: "Corp A", Value: "200", Confidence: 70},
	}

	kw := BuildKeywords(records)
	require.Len(t, kw, 2)

	// Higher-confidence record wins a contested metric name.
	assert.Equal(t, "1500", kw["Revenue"].Value)
	assert.Equal(t, "Corp A", kw["Revenue"].Company)
	assert.Equal(t, 90, kw["Revenue"].Confidence)
	assert.Equal(t, []string{"claude", "gemini"}, kw["Revenue"].Support)
	assert.Equal(t, "200", kw["Profit"].Value)
}

func TestBuildKeywords_Empty(t *testing.T) {
	assert.Empty(t, BuildKeywords(nil))
}
