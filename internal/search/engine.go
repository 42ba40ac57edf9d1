// Package search runs searches against Solr: compile, execute, extract, spell-corrected
// retry and two-pass group completion.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kensaku/internal/models"
	"github.com/hyperjump/kensaku/internal/query"
	"github.com/hyperjump/kensaku/internal/solr"
	"github.com/hyperjump/kensaku/internal/spell"
)

var (
	// ErrNotFound is returned by FindOne when nothing matches.
	ErrNotFound = errors.New("no matching object")
	// ErrNotUnique is returned by FindOne when more than one object matches.
	ErrNotUnique = errors.New("more than one matching object")
)

// Engine executes search requests. It is safe for concurrent use.
type Engine struct {
	backend  solr.Backend
	snapshot atomic.Pointer[Snapshot]
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine querying backend with the given snapshot.
func NewEngine(backend solr.Backend, snap *Snapshot, opts ...EngineOption) *Engine {
	e := &Engine{backend: backend, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	e.snapshot.Store(snap)
	return e
}

// Reload swaps in a new snapshot. Searches already running finish with the old one.
func (e *Engine) Reload(snap *Snapshot) {
	if snap == nil {
		return
	}
	e.snapshot.Store(snap)
	e.logger.Info("schema reloaded", zap.Strings("field_groups", snap.Resolver.Groups()))
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() *Snapshot {
	return e.snapshot.Load()
}

// NewRequest builds a request with the configured defaults followed by opts.
func (e *Engine) NewRequest(opts ...models.RequestOption) (*models.SearchRequest, error) {
	return models.NewSearchRequest(append(e.Snapshot().RequestDefaults(), opts...)...)
}

// Compile returns the backend parameters req assembles to without executing it.
func (e *Engine) Compile(req *models.SearchRequest) (*solr.Params, error) {
	snap := e.Snapshot()
	if err := validate(snap, req); err != nil {
		return nil, err
	}
	return snap.Assembler.Assemble(req), nil
}

// Search executes req. Grouped requests run the two-pass protocol; a phrase search
// without results is retried once with the backend's spelling suggestion.
func (e *Engine) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	snap := e.Snapshot()
	if err := validate(snap, req); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	startTime := time.Now()
	logger := e.logger.With(zap.String("request_id", requestID))

	resp, err := e.search(ctx, snap, req, logger)
	if err != nil {
		logger.Warn("search failed", zap.String("q", req.Query.Text), zap.Error(err))
		return nil, err
	}
	resp.Metadata.RequestID = requestID
	logger.Debug("search",
		zap.String("q", req.Query.Text),
		zap.Int64("found", resp.Metadata.Found),
		zap.Bool("grouped", req.Grouping),
		zap.Duration("took", time.Since(startTime)))
	return resp, nil
}

func (e *Engine) search(ctx context.Context, snap *Snapshot, req *models.SearchRequest, logger *zap.Logger) (*models.SearchResponse, error) {
	resp, err := e.run(ctx, snap, req)
	if err != nil {
		return nil, err
	}

	corrected, ok := correction(req, resp)
	if !ok {
		return resp, nil
	}
	logger.Debug("retrying with spelling correction",
		zap.String("q", req.Query.Text),
		zap.String("corrected", corrected))

	retry := req.Clone()
	retry.Query = models.Phrase(corrected)
	retry.SpellCorrection = false
	retried, err := e.run(ctx, snap, retry)
	if err != nil {
		return nil, err
	}
	retried.Metadata.CorrectedPhrase = corrected
	retried.Metadata.SpellCorrection = resp.Metadata.SpellCorrection
	return retried, nil
}

// correction returns the corrected phrase when resp is an empty phrase search that
// carries a usable suggestion.
func correction(req *models.SearchRequest, resp *models.SearchResponse) (string, bool) {
	if !req.Query.IsPhrase() || !req.SpellCorrection || req.Rows == 0 {
		return "", false
	}
	if resp.Metadata.Found > 0 || resp.Metadata.SpellCorrection == "" {
		return "", false
	}
	corrected := spell.Apply(req.Query.Text, resp.Metadata.SpellCorrection)
	if strings.TrimSpace(corrected) == "" || corrected == req.Query.Text {
		return "", false
	}
	return corrected, true
}

func (e *Engine) run(ctx context.Context, snap *Snapshot, req *models.SearchRequest) (*models.SearchResponse, error) {
	if !req.Grouping {
		return e.execute(ctx, snap, req)
	}
	page, err := e.fetchGroups(ctx, snap, req)
	if err != nil {
		return nil, err
	}
	return e.completeGroups(ctx, snap, req, page)
}

func (e *Engine) execute(ctx context.Context, snap *Snapshot, req *models.SearchRequest) (*models.SearchResponse, error) {
	reply, err := e.backend.Select(ctx, snap.Assembler.Assemble(req))
	if err != nil {
		return nil, err
	}
	return snap.Extractor.Extract(reply), nil
}

// FindOne executes req and returns its only result.
func (e *Engine) FindOne(ctx context.Context, req *models.SearchRequest) (*models.ResultItem, error) {
	resp, err := e.Search(ctx, req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.Metadata.Found == 0 || len(resp.Payload) == 0:
		return nil, ErrNotFound
	case resp.Metadata.Found > 1:
		return nil, fmt.Errorf("%w: %d matches", ErrNotUnique, resp.Metadata.Found)
	}
	return resp.Payload[0], nil
}

// Object returns the group whose key is id, with all its members.
func (e *Engine) Object(ctx context.Context, id string) (*models.ResultItem, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty object id", models.ErrInvalidRequest)
	}
	snap := e.Snapshot()
	req, err := models.NewSearchRequest(
		models.WithRawQuery(snap.Assembler.GroupField()+":"+query.Quote(id)),
		models.WithGrouping(),
		models.WithGroupLimit(snap.CompletionLimit),
		models.WithFacets(),
		models.WithStats(),
		models.WithSpellCorrection(false),
		models.WithPaging(0, 2),
	)
	if err != nil {
		return nil, err
	}
	return e.FindOne(ctx, req)
}

// SearchBatch executes independent requests concurrently, bounded by the configured
// batch concurrency. Responses keep the order of reqs; the first error cancels the rest.
func (e *Engine) SearchBatch(ctx context.Context, reqs []*models.SearchRequest) ([]*models.SearchResponse, error) {
	out := make([]*models.SearchResponse, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit := e.Snapshot().BatchConcurrency; limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := e.Search(gctx, req)
			if err != nil {
				return fmt.Errorf("batch request %d: %w", i, err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func validate(snap *Snapshot, req *models.SearchRequest) error {
	if req == nil {
		return fmt.Errorf("%w: no request", models.ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return err
	}
	if snap.MaxRows > 0 && req.Rows > snap.MaxRows {
		return fmt.Errorf("%w: rows %d exceeds the maximum of %d", models.ErrInvalidRequest, req.Rows, snap.MaxRows)
	}
	for _, f := range req.Fields {
		if !snap.Resolver.IsValid(f) {
			return fmt.Errorf("%w: unknown field %q", models.ErrInvalidRequest, f)
		}
	}
	if req.FieldGroup != "" && snap.Resolver.FieldNamesForGroup(req.FieldGroup) == nil {
		return fmt.Errorf("%w: unknown field group %q", models.ErrInvalidRequest, req.FieldGroup)
	}
	return nil
}
