package postgres

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const maxLoggedSQL = 160

type traceStartKey struct{}

type traceStart struct {
	at  time.Time
	sql string
}

// SlowQueryTracer logs statements and batches whose round trip reaches the
// threshold. Failed statements are always logged.
type SlowQueryTracer struct {
	logger    *log.Logger
	threshold time.Duration
	now       func() time.Time
}

var (
	_ pgx.QueryTracer = (*SlowQueryTracer)(nil)
	_ pgx.BatchTracer = (*SlowQueryTracer)(nil)
)

func NewSlowQueryTracer(logger *log.Logger, threshold time.Duration) *SlowQueryTracer {
	if logger == nil {
		logger = log.Default()
	}
	return &SlowQueryTracer{logger: logger, threshold: threshold, now: time.Now}
}

func (t *SlowQueryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: t.now(), sql: data.SQL})
}

func (t *SlowQueryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	t.finish(ctx, "query", data.Err)
}

func (t *SlowQueryTracer) TraceBatchStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchStartData) context.Context {
	n := 0
	if data.Batch != nil {
		n = data.Batch.Len()
	}
	return context.WithValue(ctx, traceStartKey{}, traceStart{at: t.now(), sql: "batch of " + strconv.Itoa(n)})
}

func (t *SlowQueryTracer) TraceBatchQuery(_ context.Context, _ *pgx.Conn, data pgx.TraceBatchQueryData) {
	if data.Err != nil {
		t.logger.Printf("[postgres] batch statement failed sql=%q err=%v", compactSQL(data.SQL), data.Err)
	}
}

func (t *SlowQueryTracer) TraceBatchEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceBatchEndData) {
	t.finish(ctx, "batch", data.Err)
}

func (t *SlowQueryTracer) finish(ctx context.Context, op string, err error) {
	st, ok := ctx.Value(traceStartKey{}).(traceStart)
	if !ok {
		return
	}
	took := t.now().Sub(st.at)
	switch {
	case err != nil:
		t.logger.Printf("[postgres] %s failed took=%s sql=%q err=%v", op, took, compactSQL(st.sql), err)
	case took >= t.threshold:
		t.logger.Printf("[postgres] slow %s took=%s sql=%q", op, took, compactSQL(st.sql))
	}
}

// compactSQL folds whitespace and truncates so one statement stays on one
// log line.
func compactSQL(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > maxLoggedSQL {
		s = s[:maxLoggedSQL] + "..."
	}
	return s
}
