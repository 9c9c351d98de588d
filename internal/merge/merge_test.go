package merge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/reportminer/internal/model"
)

func cand(backend, company, metric, value string, chunk int) model.CandidateRecord {
	return model.CandidateRecord{
		MetricName: metric,
		Value:      value,
		Company:    company,
		BackendID:  backend,
		Round:      model.RoundExtract,
		ChunkIndex: chunk,
		PageID:     1,
		ParaID:     chunk,
	}
}

func TestMerge_GroupCount(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("a", "Corp A", "Revenue", "100", 0),
		cand("b", "Corp A", "Revenue", "100", 0),
		cand("a", "Corp A", "Profit", "10", 0),
		cand("a", "Corp B", "Revenue", "200", 1),
		cand("b", "  corp a ", "Revenue", "100", 1), // folds into Corp A
	}
	merged := Merge(cands)
	// Distinct normalized (company, metric) pairs: (corp a, Revenue),
	// (corp a, Profit), (corp b, Revenue).
	assert.Len(t, merged, 3)
}

func TestMerge_Unanimous(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("claude", "Corp A", "Revenue", "1500.00", 0),
		cand("gemini", "Corp A", "Revenue", "1,500", 0),
		cand("qwen", "Corp A", "Revenue", "1500", 0),
	}
	merged := Merge(cands)
	require.Len(t, merged, 1)
	rec := merged[0]
	assert.Equal(t, "Revenue", rec.MetricName)
	// Normalization makes all three the same vote; display keeps the
	// tie-break representative's original formatting.
	assert.Equal(t, []string{"claude", "gemini", "qwen"}, rec.Support)
	assert.Empty(t, rec.Notes)
}

func TestMerge_SingleCandidateTrivial(t *testing.T) {
	merged := Merge([]model.CandidateRecord{cand("claude", "Corp A", "Revenue", "42", 0)})
	require.Len(t, merged, 1)
	assert.Equal(t, "42", merged[0].Value)
	assert.Equal(t, []string{"claude"}, merged[0].Support)
	assert.Empty(t, merged[0].Notes)
}

func TestMerge_SplitVoteTieBreak(t *testing.T) {
	// 2 vs 2 on the value; the 1600 camp has the more recent chunk, so it
	// wins the tie-break and a tie note is recorded.
	cands := []model.CandidateRecord{
		cand("a", "Corp A", "Revenue", "1500.00", 0),
		cand("b", "Corp A", "Revenue", "1500.00", 1),
		cand("c", "Corp A", "Revenue", "1600.00", 2),
		cand("d", "Corp A", "Revenue", "1600.00", 0),
	}
	merged := Merge(cands)
	require.Len(t, merged, 1)
	rec := merged[0]
	assert.Equal(t, "1600.00", rec.Value)
	assert.Equal(t, []string{"c", "d"}, rec.Support)
	assert.Contains(t, rec.Notes, "vote tie on value")
	// Provenance follows the winning value's representative candidate.
	assert.Equal(t, 2, rec.ParaID)
}

func TestMerge_TieBreakBackendID(t *testing.T) {
	// Equal votes, equal chunk recency: lexically smallest backend id wins.
	cands := []model.CandidateRecord{
		cand("beta", "Corp A", "Revenue", "100", 5),
		cand("alpha", "Corp A", "Revenue", "200", 5),
	}
	merged := Merge(cands)
	require.Len(t, merged, 1)
	assert.Equal(t, "200", merged[0].Value)
	assert.Equal(t, []string{"alpha"}, merged[0].Support)
}

func TestMerge_PartialAgreementNote(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("a", "Corp A", "Revenue", "100", 0),
		cand("b", "Corp A", "Revenue", "200", 0),
		cand("c", "Corp A", "Revenue", "300", 0),
	}
	merged := Merge(cands)
	require.Len(t, merged, 1)
	// Winner has 1 of 3 contributing backends: less than half.
	assert.Contains(t, merged[0].Notes, "partial agreement on value (1/3 backends)")
}

func TestMerge_IndependentFieldVoting(t *testing.T) {
	a := cand("a", "Corp A", "Revenue", "100", 0)
	a.Unit = "million"
	a.Year = "2024"
	b := cand("b", "Corp A", "Revenue", "100", 0)
	b.Unit = "million"
	c := cand("c", "Corp A", "Revenue", "999", 0)
	c.Year = "2024"

	merged := Merge([]model.CandidateRecord{a, b, c})
	require.Len(t, merged, 1)
	rec := merged[0]
	assert.Equal(t, "100", rec.Value)
	assert.Equal(t, "million", rec.Unit)
	assert.Equal(t, "2024", rec.Year)
	// Support tracks the primary value field only.
	assert.Equal(t, []string{"a", "b"}, rec.Support)
}

func TestMerge_CompanyDisplayCasing(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("a", "CORP A", "Revenue", "1", 0),
		cand("b", "Corp A", "Revenue", "1", 0),
		cand("c", "Corp A", "Revenue", "1", 0),
	}
	merged := Merge(cands)
	require.Len(t, merged, 1)
	assert.Equal(t, "Corp A", merged[0].Company)
	assert.Equal(t, []string{"a", "b", "c"}, merged[0].Support)
}

func TestMerge_DropsEmptyMetricName(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("a", "Corp A", "   ", "1", 0),
		cand("a", "Corp A", "Revenue", "1", 0),
	}
	assert.Len(t, Merge(cands), 1)
}

func TestMerge_Deterministic(t *testing.T) {
	cands := []model.CandidateRecord{
		cand("b", "Corp A", "Revenue", "1500", 0),
		cand("a", "Corp A", "Revenue", "1600", 0),
		cand("c", "corp a", "Profit", "10", 1),
		cand("a", "Corp B", "Margin", "12%", 2),
		cand("b", "Corp B", "Margin", "0.12", 2),
	}
	first, err := json.Marshal(Merge(cands))
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := json.Marshal(Merge(cands))
		require.NoError(t, err)
		assert.Equal(t, string(first), string(again))
	}
}

func TestNormalizeValue(t *testing.T) {
	tests := []struct{ in, want string }{
		{"1500.00", "1500"},
		{"1,500", "1500"},
		{" 1500 ", "1500"},
		{"$1,500.50", "1500.5"},
		{"12%", "12"},
		{"¥250", "250"},
		{"n/a", "n/a"},
		{"", ""},
		{"  ", ""},
		{"2.5 billion", "2.5billion"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeValue(tt.in), "input %q", tt.in)
	}
}
