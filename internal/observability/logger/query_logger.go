package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// QueryLoggerConfig configures statement logging for the survey store.
type QueryLoggerConfig struct {
	// SlowThreshold turns a statement into a warning. Zero uses 200ms.
	SlowThreshold time.Duration
	// Statements logs every statement at debug level.
	Statements bool
}

// QueryLogger is the gorm logger of the survey store. Each statement is
// logged with its table and operation; FromContext adds the survey the
// request is working on. Bound values are never logged.
type QueryLogger struct {
	level gormlogger.LogLevel
	slow  time.Duration
}

func NewQueryLogger(cfg QueryLoggerConfig) *QueryLogger {
	level := gormlogger.Warn
	if cfg.Statements {
		level = gormlogger.Info
	}
	slow := cfg.SlowThreshold
	if slow <= 0 {
		slow = defaultSlowQuery
	}
	return &QueryLogger{level: level, slow: slow}
}

func (l *QueryLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	next := *l
	next.level = level
	return &next
}

func (l *QueryLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *QueryLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *QueryLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	l.message(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *QueryLogger) message(ctx context.Context, threshold gormlogger.LogLevel, level zapcore.Level, msg string, data []interface{}) {
	if l.level < threshold {
		return
	}
	fields := []zap.Field{zap.String("component", "db")}
	if len(data) > 0 {
		fields = append(fields, zap.Any("data", data))
	}
	if ce := FromContext(ctx).Check(level, msg); ce != nil {
		ce.Write(fields...)
	}
}

// Trace logs failed and slow statements, and every statement when enabled.
// A missing row is not a failure: lookups of unknown surveys are expected.
func (l *QueryLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}

	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gormlogger.ErrRecordNotFound) && l.level >= gormlogger.Error:
		l.statement(ctx, zapcore.ErrorLevel, fc, elapsed, err)
	case elapsed > l.slow && l.level >= gormlogger.Warn:
		l.statement(ctx, zapcore.WarnLevel, fc, elapsed, nil)
	case l.level >= gormlogger.Info:
		l.statement(ctx, zapcore.DebugLevel, fc, elapsed, nil)
	}
}

// ParamsFilter drops bound values; observations are free text.
func (l *QueryLogger) ParamsFilter(_ context.Context, sql string, _ ...interface{}) (string, []interface{}) {
	return sql, nil
}

func (l *QueryLogger) statement(ctx context.Context, level zapcore.Level, fc func() (string, int64), elapsed time.Duration, err error) {
	msg := "db.query"
	if level == zapcore.WarnLevel {
		msg = "db.slow_query"
	}
	ce := FromContext(ctx).Check(level, msg)
	if ce == nil {
		return
	}

	sql, rows := fc()
	fields := queryFields(sql, rows, elapsed)
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	ce.Write(fields...)
}

func queryFields(sql string, rows int64, elapsed time.Duration) []zap.Field {
	fields := []zap.Field{
		zap.String("component", "db"),
		zap.String("operation", operationFromSQL(sql)),
		zap.String("table", tableFromSQL(sql)),
		zap.String("sql", strings.TrimSpace(sql)),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	}
	if rows >= 0 {
		fields = append(fields, zap.Int64("rows", rows))
	}
	return fields
}

func operationFromSQL(sql string) string {
	for _, token := range strings.Fields(strings.ToUpper(sql)) {
		token = strings.Trim(token, "();")
		switch token {
		case "SELECT", "INSERT", "UPDATE", "DELETE", "CREATE":
			return token
		}
	}
	return "UNKNOWN"
}

// tableFromSQL returns the first table a statement reads or writes.
func tableFromSQL(sql string) string {
	tokens := strings.Fields(sql)
	for i := 0; i < len(tokens)-1; i++ {
		switch strings.ToUpper(tokens[i]) {
		case "FROM", "INTO", "UPDATE", "TABLE":
			name := strings.Trim(tokens[i+1], "`\"[]();")
			if name != "" && !strings.EqualFold(name, "IF") {
				return strings.ToLower(name)
			}
		}
	}
	return ""
}

var _ gormlogger.Interface = (*QueryLogger)(nil)
