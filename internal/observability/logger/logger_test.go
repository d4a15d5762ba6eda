package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/relevamientos/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func statement(sql string) func() (string, int64) {
	return func() (string, int64) { return sql, 1 }
}

func TestOperationFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT * FROM surveys":                    "SELECT",
		"  insert into surveys (operator) values ?": "INSERT",
		"UPDATE surveys SET report_filename = ?":   "UPDATE",
		"WITH x AS (SELECT 1) SELECT * FROM x":     "SELECT",
		"PRAGMA foreign_keys = ON":                 "UNKNOWN",
		"":                                         "UNKNOWN",
	}
	for sql, want := range cases {
		assert.Equal(t, want, operationFromSQL(sql), sql)
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(nil, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestGinMiddlewarePropagatesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{}))
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("request_id"))
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc-123", w.Body.String())
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-Id"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}

func TestTableFromSQL(t *testing.T) {
	cases := map[string]string{
		"SELECT id FROM surveys WHERE id = ?":                  "surveys",
		`INSERT INTO "surveys" ("operator") VALUES (?)`:        "surveys",
		"UPDATE `surveys` SET `report_filename`=? WHERE id=?": "surveys",
		"CREATE TABLE IF NOT EXISTS surveys (id int)":          "",
		"SELECT 1":                                             "",
	}
	for sql, want := range cases {
		assert.Equal(t, want, tableFromSQL(sql), sql)
	}
}

func TestQueryLoggerSkipsQuietStatements(t *testing.T) {
	logs := observeGlobal(t)
	l := NewQueryLogger(QueryLoggerConfig{})

	l.Trace(context.Background(), time.Now(), statement("SELECT * FROM surveys"), nil)
	l.Trace(context.Background(), time.Now(), statement("SELECT * FROM surveys WHERE id = ?"), gormlogger.ErrRecordNotFound)
	assert.Zero(t, logs.Len())
}

func TestQueryLoggerTagsFailuresWithSurvey(t *testing.T) {
	logs := observeGlobal(t)
	l := NewQueryLogger(QueryLoggerConfig{})
	ctx := obscontext.WithSurveyID(context.Background(), 7)

	l.Trace(ctx, time.Now(), statement("UPDATE surveys SET report_filename = ? WHERE id = ?"), errors.New("disk I/O error"))

	entries := logs.FilterMessage("db.query").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, int64(7), fields["survey_id"])
	assert.Equal(t, "surveys", fields["table"])
	assert.Equal(t, "UPDATE", fields["operation"])
	assert.Equal(t, "disk I/O error", fields["error"])
}

func TestQueryLoggerWarnsOnSlowStatements(t *testing.T) {
	logs := observeGlobal(t)
	l := NewQueryLogger(QueryLoggerConfig{SlowThreshold: 10 * time.Millisecond})

	l.Trace(context.Background(), time.Now().Add(-time.Second), statement("SELECT * FROM surveys ORDER BY id desc"), nil)

	entries := logs.FilterMessage("db.slow_query").AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.NotContains(t, entries[0].ContextMap(), "survey_id")
}

func TestQueryLoggerStatementsAtDebug(t *testing.T) {
	logs := observeGlobal(t)
	l := NewQueryLogger(QueryLoggerConfig{Statements: true})

	l.Trace(context.Background(), time.Now(), statement("INSERT INTO surveys (operator) VALUES (?)"), nil)
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)

	silent := l.LogMode(gormlogger.Silent)
	silent.Trace(context.Background(), time.Now(), statement("SELECT 1"), errors.New("boom"))
	assert.Equal(t, 1, logs.Len())
}

func TestWithContextAddsOnlyPresentIDs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")
	ctx := obscontext.WithSurveyID(obscontext.WithRequestID(context.Background(), "req-9"), 12)
	WithContext(ctx, base).Info("tagged")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].Context)
	fields := entries[1].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, int64(12), fields["survey_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestGinMiddlewareLogsSurveyOperation(t *testing.T) {
	logs := observeGlobal(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(MiddlewareConfig{
		Operations: map[string]string{"/download/:id": "survey.download", "/submit": "survey.submit"},
	}))
	r.GET("/download/:id", func(c *gin.Context) {
		c.Set("survey_id", c.Param("id"))
		c.Status(http.StatusOK)
	})
	r.POST("/submit", func(c *gin.Context) {
		c.Status(http.StatusTooManyRequests)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/download/5", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/submit", nil))

	entries := logs.FilterMessage("http_request").AllUntimed()
	require.Len(t, entries, 2)

	download := entries[0].ContextMap()
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, "survey.download", download["operation"])
	assert.Equal(t, int64(5), download["survey_id"])
	assert.Equal(t, "/download/:id", download["route"])

	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "survey.submit", entries[1].ContextMap()["operation"])
	assert.NotContains(t, entries[1].ContextMap(), "survey_id")
}
