package canopy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourview/yourview/internal/apperr"
)

type fakeCaller struct {
	mu     sync.Mutex
	rows   []json.RawMessage
	err    error
	panics bool
	calls  []map[string]any
	procs  []string
}

func (f *fakeCaller) Call(_ context.Context, procedure string, params map[string]any) ([]json.RawMessage, error) {
	f.mu.Lock()
	f.calls = append(f.calls, params)
	f.procs = append(f.procs, procedure)
	f.mu.Unlock()
	if f.panics {
		panic("boom")
	}
	return f.rows, f.err
}

func newTestService(t *testing.T, rpc Caller, opts ...Option) (*Service, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	return NewService(rpc, append([]Option{WithLogger(logger)}, opts...)...), &buf
}

func logLines(buf *bytes.Buffer) int {
	return strings.Count(buf.String(), "\n")
}

func TestLookup_FirstRowReturnedUnmodified(t *testing.T) {
	rpc := &fakeCaller{rows: []json.RawMessage{
		json.RawMessage(`{"coverage": 0.42}`),
		json.RawMessage(`{"coverage": 0.10}`),
	}}
	svc, logs := newTestService(t, rpc)

	res := svc.Lookup(context.Background(), "Richmond, VIC")
	require.Equal(t, StatusFound, res.Status)
	assert.JSONEq(t, `{"coverage": 0.42}`, string(res.Record))
	assert.Equal(t, `{"coverage": 0.42}`, string(res.Record))
	assert.Equal(t, "Richmond", res.Key)
	assert.Equal(t, "Richmond, VIC", res.Suburb)
	assert.NoError(t, res.Err)
	assert.Zero(t, logs.Len())

	require.Len(t, rpc.calls, 1)
	assert.Equal(t, map[string]any{"suburb": "Richmond"}, rpc.calls[0])
	assert.Equal(t, DefaultProcedure, rpc.procs[0])
}

func TestLookup_EmptyRowsIsNotFound(t *testing.T) {
	rpc := &fakeCaller{rows: []json.RawMessage{}}
	svc, logs := newTestService(t, rpc)

	res := svc.Lookup(context.Background(), "Brunswick VIC")
	assert.Equal(t, StatusNotFound, res.Status)
	assert.Nil(t, res.Record)
	assert.Equal(t, "Brunswick", res.Key)
	assert.Zero(t, logs.Len())
	assert.Nil(t, svc.FetchCoverage(context.Background(), "Brunswick VIC"))
}

func TestLookup_NullFirstRowIsNotFound(t *testing.T) {
	rpc := &fakeCaller{rows: []json.RawMessage{json.RawMessage("null")}}
	svc, _ := newTestService(t, rpc)

	res := svc.Lookup(context.Background(), "Kew")
	assert.Equal(t, StatusNotFound, res.Status)
}

func TestLookup_ErrorIsLoggedOnce(t *testing.T) {
	rpc := &fakeCaller{err: errors.New("connection refused")}
	svc, logs := newTestService(t, rpc)

	res := svc.Lookup(context.Background(), "Carlton")
	assert.Equal(t, StatusFailed, res.Status)
	assert.Nil(t, res.Record)
	require.Error(t, res.Err)
	assert.True(t, errors.Is(res.Err, apperr.ErrUpstream))
	assert.Equal(t, 1, logLines(logs))
	assert.Contains(t, logs.String(), "Error fetching canopy cover")
	assert.Contains(t, logs.String(), "connection refused")
}

func TestLookup_PanicIsRecovered(t *testing.T) {
	rpc := &fakeCaller{panics: true}
	svc, logs := newTestService(t, rpc)

	var rec Record
	require.NotPanics(t, func() {
		rec = svc.FetchCoverage(context.Background(), "Fitzroy")
	})
	assert.Nil(t, rec)
	assert.Equal(t, 1, logLines(logs))
}

func TestFetchCoverage_Found(t *testing.T) {
	rpc := &fakeCaller{rows: []json.RawMessage{json.RawMessage(`{"coverage":0.42}`)}}
	svc, _ := newTestService(t, rpc)

	rec := svc.FetchCoverage(context.Background(), "Richmond")
	assert.Equal(t, `{"coverage":0.42}`, string(rec))
}

func TestLookup_EveryCallHitsRemote(t *testing.T) {
	rpc := &fakeCaller{rows: []json.RawMessage{json.RawMessage(`{}`)}}
	svc, _ := newTestService(t, rpc)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc.Lookup(context.Background(), "Richmond")
		}()
	}
	wg.Wait()
	svc.Lookup(context.Background(), "")
	assert.Len(t, rpc.calls, 9)
}

func TestWithProcedure(t *testing.T) {
	rpc := &fakeCaller{}
	svc, _ := newTestService(t, rpc, WithProcedure("canopy_lookup"), WithProcedure(""))
	svc.Lookup(context.Background(), "Kew")
	assert.Equal(t, "canopy_lookup", svc.Procedure())
	assert.Equal(t, []string{"canopy_lookup"}, rpc.procs)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "found", StatusFound.String())
	assert.Equal(t, "not_found", StatusNotFound.String())
	assert.Equal(t, "failed", StatusFailed.String())
	assert.Equal(t, "unknown", Status(0).String())
}
