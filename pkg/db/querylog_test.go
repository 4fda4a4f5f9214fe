package db

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/quotedesk-backend/pkg/logger"
)

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.DebugLevel, Output: buf})
	q := newQueryLogger(logg, 10*time.Millisecond)
	ctx := logg.WithQuoteID(context.Background(), "q-9")
	stmt := func() (string, int64) { return "UPDATE quotes SET version = 4", 1 }

	q.Trace(ctx, time.Now(), stmt, nil)
	if buf.Len() != 0 {
		t.Fatalf("fast successful query should not be logged: %s", buf.String())
	}

	q.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	if !strings.Contains(buf.String(), `"level":"warn"`) || !strings.Contains(buf.String(), `"quote_id":"q-9"`) {
		t.Fatalf("expected slow query warning with context fields, got %s", buf.String())
	}

	buf.Reset()
	q.Trace(ctx, time.Now(), stmt, errors.New("deadlock detected"))
	if !strings.Contains(buf.String(), `"error":"deadlock detected"`) {
		t.Fatalf("expected failed query error entry, got %s", buf.String())
	}

	buf.Reset()
	q.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	if buf.Len() != 0 {
		t.Fatalf("silent mode should log nothing: %s", buf.String())
	}
}
