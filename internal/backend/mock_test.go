package backend

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/reportminer/internal/model"
)

func TestMockBackend_ExtractsMetricLines(t *testing.T) {
	b := NewMock("mock")
	prompt := BuildExtractPrompt(testChunk)

	raw, err := b.Complete(context.Background(), prompt)
	require.NoError(t, err)

	entries, err := NormalizerFor(b.ID())(raw)
	require.NoError(t, err)
	recs := Candidates(entries, testChunk, model.RoundExtract, b.ID())
	require.Len(t, recs, 2)

	assert.Equal(t, "Revenue", recs[0].MetricName)
	assert.Equal(t, "1500", recs[0].Value)
	assert.Equal(t, "million", recs[0].Unit)
	assert.Equal(t, 3, recs[0].PageID)
	assert.Equal(t, 4, recs[0].ParaID)

	assert.Equal(t, "Profit", recs[1].MetricName)
	assert.Equal(t, 5, recs[1].ParaID)
}

func TestMockBackend_VerifyRoundIsEmpty(t *testing.T) {
	b := NewMock("mock")
	prior := []model.CandidateRecord{{MetricName: "Revenue", Value: "1500"}}

	raw, err := b.Complete(context.Background(), BuildVerifyPrompt(testChunk, prior))
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestMockBackend_NoMetricLines(t *testing.T) {
	b := NewMock("mock")
	chunk := model.Chunk{Units: []model.ParagraphUnit{{PageID: 1, ParaID: 1, Text: "No numbers here."}}}

	raw, err := b.Complete(context.Background(), BuildExtractPrompt(chunk))
	require.NoError(t, err)
	assert.Equal(t, "[]", raw)
}

func TestMockBackend_Deterministic(t *testing.T) {
	b := NewMock("mock")
	prompt := BuildExtractPrompt(testChunk)

	first, err := b.Complete(context.Background(), prompt)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := b.Complete(context.Background(), prompt)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
