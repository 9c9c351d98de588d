package extract

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finsight/reportminer/internal/backend"
	"github.com/finsight/reportminer/internal/model"
)

// scriptedBackend returns a fixed reply, or an error, and counts calls.
type scriptedBackend struct {
	id    string
	reply string
	err   error
	delay time.Duration
	calls atomic.Int64
}

func (b *scriptedBackend) ID() string { return b.id }

func (b *scriptedBackend) Complete(ctx context.Context, _ string) (string, error) {
	b.calls.Add(1)
	if b.delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(b.delay):
		}
	}
	if b.err != nil {
		return "", b.err
	}
	return b.reply, nil
}

func testChunks(n int) []model.Chunk {
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		chunks[i] = model.Chunk{
			Index:     i,
			StartPara: i,
			EndPara:   i,
			Units:     []model.ParagraphUnit{{PageID: 1, ParaID: i, Text: "Revenue: 1500 million"}},
		}
	}
	return chunks
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)

	_, err = New([]backend.Backend{
		&scriptedBackend{id: "a"},
		&scriptedBackend{id: "a"},
	}, Options{})
	assert.Error(t, err)
}

func TestExtractChunk_CollectsAllBackends(t *testing.T) {
	a := &scriptedBackend{id: "a", reply: `[{"metric_name":"Revenue","value":"1500"}]`}
	b := &scriptedBackend{id: "b", reply: `[{"metric_name":"Revenue","value":"1500"},{"metric_name":"Profit","value":"200"}]`}
	o, err := New([]backend.Backend{a, b}, Options{})
	require.NoError(t, err)

	recs, err := o.ExtractChunk(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	require.Len(t, recs, 3)

	// Fixed backend order: a's candidates first.
	assert.Equal(t, "a", recs[0].BackendID)
	assert.Equal(t, "b", recs[1].BackendID)
	assert.Equal(t, "b", recs[2].BackendID)
	for _, r := range recs {
		assert.Equal(t, model.RoundExtract, r.Round)
	}
}

func TestExtractChunk_FailedBackendIsSkipped(t *testing.T) {
	good := &scriptedBackend{id: "good", reply: `[{"metric_name":"Revenue","value":"1500"}]`}
	bad := &scriptedBackend{id: "bad", err: errors.New("boom")}
	o, err := New([]backend.Backend{good, bad}, Options{})
	require.NoError(t, err)

	recs, err := o.ExtractChunk(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "good", recs[0].BackendID)
}

func TestExtractChunk_AllBackendsFail(t *testing.T) {
	o, err := New([]backend.Backend{
		&scriptedBackend{id: "a", err: errors.New("boom")},
		&scriptedBackend{id: "b", reply: "not json at all"},
	}, Options{})
	require.NoError(t, err)

	recs, err := o.ExtractChunk(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestExtractChunk_Timeout(t *testing.T) {
	slow := &scriptedBackend{id: "slow", reply: `[{"metric_name":"Revenue","value":"1"}]`, delay: time.Second}
	fast := &scriptedBackend{id: "fast", reply: `[{"metric_name":"Profit","value":"2"}]`}
	o, err := New([]backend.Backend{slow, fast}, Options{CallTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	recs, err := o.ExtractChunk(context.Background(), testChunks(1)[0])
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "fast", recs[0].BackendID)
}

func TestExtractChunk_VerifyRoundIsAdditive(t *testing.T) {
	b := &scriptedBackend{id: "a", reply: `[{"metric_name":"Revenue","value":"1500"}]`}
	o, err := New([]backend.Backend{b}, Options{Verify: true})
	require.NoError(t, err)

	recs, err := o.ExtractChunk(context.Background(), testChunks(1)[0])
	require.NoError(t, err)

	// One extract call plus one verify call per backend.
	assert.Equal(t, int64(2), b.calls.Load())
	require.Len(t, recs, 2)
	assert.Equal(t, model.RoundExtract, recs[0].Round)
	assert.Equal(t, model.RoundVerify, recs[1].Round)
}

func TestExtractAll_ChunkOrderIsDeterministic(t *testing.T) {
	b := &scriptedBackend{id: "a", reply: `[{"metric_name":"Revenue","value":"1500"}]`}
	o, err := New([]backend.Backend{b}, Options{ChunkConcurrency: 3})
	require.NoError(t, err)

	chunks := testChunks(5)
	recs, err := o.ExtractAll(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, recs, 5)
	for i, r := range recs {
		assert.Equal(t, i, r.ChunkIndex)
	}
}

func TestExtractAll_Canceled(t *testing.T) {
	slow := &scriptedBackend{id: "slow", reply: "[]", delay: time.Second}
	o, err := New([]backend.Backend{slow}, Options{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = o.ExtractAll(ctx, testChunks(2))
	assert.Error(t, err)
}
