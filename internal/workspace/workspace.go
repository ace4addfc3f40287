// Package workspace analyses Clarion documents, caching results by content
// and publishing them to subscribers.
package workspace

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/clarionscope/internal/cachemanager"
	"github.com/zjrosen/clarionscope/internal/clarion"
	"github.com/zjrosen/clarionscope/internal/log"
	"github.com/zjrosen/clarionscope/internal/outline"
	"github.com/zjrosen/clarionscope/internal/pubsub"
	"github.com/zjrosen/clarionscope/internal/tracing"
)

// ErrSuperseded is returned when a newer version of the document arrived
// before its analysis started.
var ErrSuperseded = errors.New("document version superseded")

// Document is one version of a source file's text.
type Document struct {
	Path    string
	Version int
	Text    string
}

// Analysis is the resolved structure of one document version.
type Analysis struct {
	Path    string                 `json:"path"`
	Version int                    `json:"version"`
	Hash    string                 `json:"hash"`
	Lines   int                    `json:"lines"`
	Result  clarion.Result         `json:"result"`
	Symbols []outline.Symbol       `json:"symbols"`
	Folding []outline.FoldingRange `json:"folding"`
}

// Event is published for every analysed, removed or unreadable document.
type Event struct {
	Path     string
	Analysis *Analysis
	Err      error
}

type cacheKey string

// Options configures a Service.
type Options struct {
	Filter          Filter
	Workers         int
	CacheTTL        time.Duration
	CleanupInterval time.Duration
	SkipCache       bool
	Tracer          *tracing.Provider
}

// Service owns document versions and the analysis cache.
type Service struct {
	opts   Options
	store  *cachemanager.InMemoryCacheManager[cacheKey, *Analysis]
	cache  *cachemanager.ReadThroughCache[cacheKey, *Analysis, Document]
	tracer *tracing.Provider
	broker *pubsub.Broker[Event]

	mu       sync.Mutex
	versions map[string]int
}

// New creates a workspace service.
func New(opts Options) *Service {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.CacheTTL == 0 {
		opts.CacheTTL = cachemanager.DefaultExpiration
	}
	if opts.CleanupInterval == 0 {
		opts.CleanupInterval = cachemanager.DefaultCleanupInterval
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Disabled()
	}

	s := &Service{
		opts:     opts,
		store:    cachemanager.NewInMemoryCacheManager[cacheKey, *Analysis]("analysis", opts.CacheTTL, opts.CleanupInterval),
		tracer:   tracer,
		broker:   pubsub.NewBroker[Event](),
		versions: make(map[string]int),
	}
	s.cache = cachemanager.NewReadThroughCache[cacheKey, *Analysis, Document](s.store, s.analyze,
		cachemanager.WithRefreshOnHit(),
		cachemanager.WithBypass(opts.SkipCache),
	)
	return s
}

// Subscribe delivers events of the given types (all when none are named)
// until ctx is cancelled or the service is closed.
func (s *Service) Subscribe(ctx context.Context, types ...pubsub.EventType) <-chan pubsub.Event[Event] {
	return s.broker.Subscribe(ctx, types...)
}

// Broker exposes the event broker for pull-style listeners.
func (s *Service) Broker() *pubsub.Broker[Event] {
	return s.broker
}

// Filter returns the file filter scans use.
func (s *Service) Filter() Filter {
	return s.opts.Filter
}

// CacheStats reports analysis cache effectiveness.
func (s *Service) CacheStats() cachemanager.Stats {
	return s.store.Stats()
}

// Close shuts down event delivery.
func (s *Service) Close() {
	s.broker.Close()
}

// Update records text as the newest version of path and analyses it.
func (s *Service) Update(ctx context.Context, path, text string) (*Analysis, error) {
	s.mu.Lock()
	s.versions[path]++
	doc := Document{Path: path, Version: s.versions[path], Text: text}
	s.mu.Unlock()

	return s.Analyze(ctx, doc)
}

// Version returns the newest known version of path, or 0.
func (s *Service) Version(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.versions[path]
}

// AnalyzeFile reads path from disk and analyses it as a new version.
func (s *Service) AnalyzeFile(ctx context.Context, path string) (*Analysis, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the scanned tree
	if err != nil {
		err = fmt.Errorf("reading %s: %w", path, err)
		log.ErrorErr(log.CatWorkspace, "read failed", err, "path", path)
		s.broker.Publish(pubsub.FailedEvent, Event{Path: path, Err: err})
		return nil, err
	}
	return s.Update(ctx, path, string(data))
}

// Analyze resolves doc unless ctx is done or a newer version exists.
// Identical text is served from the cache.
func (s *Service) Analyze(ctx context.Context, doc Document) (*Analysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.superseded(doc) {
		log.Debug(log.CatWorkspace, "skipping superseded version", "path", doc.Path, "version", doc.Version)
		return nil, ErrSuperseded
	}

	hash := Hash(doc.Text)
	ctx, span := s.tracer.Start(ctx, tracing.SpanAnalyze,
		attribute.String(tracing.AttrDocumentPath, doc.Path),
		attribute.Int(tracing.AttrDocumentVersion, doc.Version),
	)

	cached, err := s.cache.Get(ctx, cacheKey(doc.Path+"@"+hash), doc, s.opts.CacheTTL)
	if err != nil {
		tracing.End(span, err)
		return nil, err
	}
	tracing.End(span, nil)

	// Cached analyses are shared; stamp the requested version on a copy.
	a := *cached
	a.Version = doc.Version
	s.broker.Publish(pubsub.AnalyzedEvent, Event{Path: doc.Path, Analysis: &a})
	return &a, nil
}

// analyze is the cache loader: one classify and resolve pass.
func (s *Service) analyze(ctx context.Context, doc Document) (*Analysis, error) {
	lines := clarion.LineCount(doc.Text)

	_, span := s.tracer.Start(ctx, tracing.SpanClassify, attribute.Int(tracing.AttrDocumentLines, lines))
	lexemes := clarion.Classify(doc.Text)
	span.SetAttributes(attribute.Int(tracing.AttrLexemeCount, len(lexemes)))
	tracing.End(span, nil)

	_, span = s.tracer.Start(ctx, tracing.SpanResolve)
	res := clarion.Resolve(lexemes, clarion.WithLastLine(lines-1))
	span.SetAttributes(
		attribute.Int(tracing.AttrScopeCount, len(res.Scopes)),
		attribute.Int(tracing.AttrDiagnosticCount, len(res.Diagnostics)),
	)
	tracing.End(span, nil)

	log.Debug(log.CatResolve, "resolved", "path", doc.Path, "lexemes", len(lexemes),
		"scopes", len(res.Scopes), "diagnostics", len(res.Diagnostics))

	return &Analysis{
		Path:    doc.Path,
		Version: doc.Version,
		Hash:    Hash(doc.Text),
		Lines:   lines,
		Result:  res,
		Symbols: outline.Symbols(res),
		Folding: outline.FoldingRanges(res),
	}, nil
}

func (s *Service) superseded(doc Document) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return doc.Version < s.versions[doc.Path]
}

// Remove forgets path and notifies subscribers.
func (s *Service) Remove(path string) {
	s.mu.Lock()
	_, known := s.versions[path]
	delete(s.versions, path)
	s.mu.Unlock()

	if known {
		log.Debug(log.CatWorkspace, "removed", "path", path)
	}
	s.broker.Publish(pubsub.RemovedEvent, Event{Path: path})
}

// Hash returns the hex sha256 of text.
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// sortByPath orders analyses for stable output.
func sortByPath(list []*Analysis) {
	slices.SortFunc(list, func(a, b *Analysis) int {
		switch {
		case a.Path < b.Path:
			return -1
		case a.Path > b.Path:
			return 1
		}
		return 0
	})
}
