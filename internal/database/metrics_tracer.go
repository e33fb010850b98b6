package database

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tidelock/stashbox/internal/metrics"
)

// queryTracer hooks into pgx to record per-query duration and error counts,
// labeled by the leading SQL verb.
type queryTracer struct{}

var _ pgx.QueryTracer = queryTracer{}

type traceKey struct{}

type traceInfo struct {
	started time.Time
	label   string
}

func (queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceKey{}, traceInfo{
		started: time.Now(),
		label:   queryLabel(data.SQL),
	})
}

func (queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	info, ok := ctx.Value(traceKey{}).(traceInfo)
	if !ok {
		return
	}
	metrics.DBQueryDuration.WithLabelValues(info.label).Observe(time.Since(info.started).Seconds())
	if data.Err != nil {
		metrics.DBErrorsTotal.WithLabelValues(info.label).Inc()
	}
}

// queryLabel reduces a statement to its first word so metric cardinality
// stays bounded regardless of query shape.
func queryLabel(sql string) string {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return "unknown"
	}
	verb := fields[0]
	if len(verb) > 20 {
		verb = verb[:20]
	}
	return verb
}
