package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrDocumentPath    = "document.path"
	AttrDocumentVersion = "document.version"
	AttrDocumentLines   = "document.lines"
	AttrLexemeCount     = "clarion.lexemes"
	AttrScopeCount      = "clarion.scopes"
	AttrDiagnosticCount = "clarion.diagnostics"
	AttrScanFiles       = "scan.files"
	AttrScanRunID       = "scan.run_id"
)

// Span names.
const (
	SpanScan     = "workspace.scan"
	SpanAnalyze  = "workspace.analyze"
	SpanClassify = "clarion.classify"
	SpanResolve  = "clarion.resolve"
	SpanIndex    = "index.store"
)

// Start begins a span on the provider's tracer.
func (p *Provider) Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on the span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
