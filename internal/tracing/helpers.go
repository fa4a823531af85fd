package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer names.
const (
	tracerName      = "rankiro"
	storeTracerName = "rankiro/store"
)

// DBSystem identifies the storage backend of a store span.
type DBSystem string

const (
	// DBSystemPostgres is PostgreSQL.
	DBSystemPostgres DBSystem = "postgresql"
	// DBSystemRedis is Redis.
	DBSystemRedis DBSystem = "redis"
)

// DBOperation represents the type of store operation being traced.
type DBOperation string

const (
	// DBOperationQuery is a read.
	DBOperationQuery DBOperation = "query"
	// DBOperationInsert is a write of new rows or entries.
	DBOperationInsert DBOperation = "insert"
)

// StartStoreSpan starts a client span for a store operation against target
// (a table or key space). Call the returned function with the operation's
// error to end the span.
//
//	ctx, endSpan := tracing.StartStoreSpan(ctx, tracing.DBSystemRedis, "leaderboard", tracing.DBOperationQuery)
//	defer func() { endSpan(err) }()
func StartStoreSpan(ctx context.Context, system DBSystem, target string, operation DBOperation) (context.Context, func(error)) {
	spanName := string(operation)
	if target != "" {
		spanName = spanName + " " + target
	}

	attrs := []attribute.KeyValue{
		attribute.String("db.system", string(system)),
		attribute.String("db.operation", string(operation)),
	}
	if target != "" {
		attrs = append(attrs, attribute.String("db.collection.name", target))
	}

	ctx, span := otel.Tracer(storeTracerName).Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attrs...),
	)
	return ctx, endFunc(span)
}

// StartDBSpan starts a span for a PostgreSQL operation on table.
func StartDBSpan(ctx context.Context, table string, operation DBOperation) (context.Context, func(error)) {
	return StartStoreSpan(ctx, DBSystemPostgres, table, operation)
}

// StartSpan starts an internal span for a pipeline stage.
//
//	ctx, endSpan := tracing.StartSpan(ctx, "ranking.score_batch")
//	defer func() { endSpan(err) }()
func StartSpan(ctx context.Context, name string) (context.Context, func(error)) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name)
	return ctx, endFunc(span)
}

func endFunc(span trace.Span) func(error) {
	return func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// AddEvent adds an event to the current span.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// SetAttributes sets attributes on the current span.
func SetAttributes(ctx context.Context, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).SetAttributes(attrs...)
}
