// Package canopy looks up canopy-cover statistics for a suburb through a
// remote procedure exposed by the backend.
package canopy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/yourview/yourview/internal/apperr"
	"github.com/yourview/yourview/internal/suburb"
)

const (
	// DefaultProcedure is the remote procedure queried for canopy cover.
	DefaultProcedure = "get_canopy_cover_by_suburb"
	// ParamSuburb is the sole named parameter passed to the procedure.
	ParamSuburb = "suburb"
)

// Record is one row returned by the remote procedure. Its schema belongs to
// the backend, so it is carried as raw JSON and never reshaped.
type Record = json.RawMessage

// Caller invokes a named remote procedure with named parameters and returns
// the resulting rows, each encoded as a JSON object.
type Caller interface {
	Call(ctx context.Context, procedure string, params map[string]any) ([]json.RawMessage, error)
}

// Status is the outcome of a lookup.
type Status int

const (
	StatusFound Status = iota + 1
	StatusNotFound
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a single lookup. Err is set only for StatusFailed
// and always wraps apperr.ErrUpstream.
type Result struct {
	Suburb string
	Key    string
	Status Status
	Record Record
	Err    error
}

// Found reports whether the lookup produced a record.
func (r Result) Found() bool { return r.Status == StatusFound }

// Option configures a Service.
type Option func(*Service)

// WithProcedure overrides the remote procedure name.
func WithProcedure(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.procedure = name
		}
	}
}

// WithLogger sets the logger used for failure diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// Service performs canopy lookups. It holds no per-call state and is safe
// for concurrent use; parallel lookups are independent round trips.
type Service struct {
	rpc       Caller
	procedure string
	logger    *slog.Logger
}

// NewService creates a Service backed by rpc.
func NewService(rpc Caller, opts ...Option) *Service {
	s := &Service{
		rpc:       rpc,
		procedure: DefaultProcedure,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Procedure returns the remote procedure name in use.
func (s *Service) Procedure() string { return s.procedure }

// Lookup normalizes raw, issues exactly one remote call and classifies the
// outcome. It never returns an error directly; failures are reported through
// Result.Status and Result.Err after being logged once.
func (s *Service) Lookup(ctx context.Context, raw string) Result {
	res := Result{Suburb: raw, Key: suburb.Normalize(raw)}

	rows, err := s.call(ctx, res.Key)
	if err != nil {
		s.logger.Error("Error fetching canopy cover",
			slog.String("procedure", s.procedure),
			slog.String("suburb", res.Key),
			slog.String("error", err.Error()))
		res.Status = StatusFailed
		res.Err = fmt.Errorf("canopy: %s: %w: %v", s.procedure, apperr.ErrUpstream, err)
		return res
	}

	if len(rows) == 0 || isNull(rows[0]) {
		res.Status = StatusNotFound
		return res
	}
	res.Status = StatusFound
	res.Record = rows[0]
	return res
}

// FetchCoverage returns the first matching record, or nil when nothing
// matched or the remote call failed.
func (s *Service) FetchCoverage(ctx context.Context, raw string) Record {
	if res := s.Lookup(ctx, raw); res.Found() {
		return res.Record
	}
	return nil
}

// call invokes the procedure, turning a panic in the transport or decoding
// path into an ordinary error.
func (s *Service) call(ctx context.Context, key string) (rows []json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			rows, err = nil, fmt.Errorf("panic during remote call: %v", p)
		}
	}()
	return s.rpc.Call(ctx, s.procedure, map[string]any{ParamSuburb: key})
}

func isNull(row json.RawMessage) bool {
	return len(bytes.TrimSpace(row)) == 0 || bytes.Equal(bytes.TrimSpace(row), []byte("null"))
}
