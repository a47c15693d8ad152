package sqldb

import (
	"time"

	"github.com/alephtav/go-ddd/core/query"
	"go.uber.org/zap"
)

// StatementLogger logs finished statements the way every executor in this
// module does: debug on success, warn when slower than the threshold and
// error on failure.
type StatementLogger struct {
	Logger  *zap.Logger
	Options *Options
}

// NewStatementLogger fills in a no-op logger and DefaultOptions for nil
// arguments.
func NewStatementLogger(logger *zap.Logger, options *Options) StatementLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if options == nil {
		options = DefaultOptions()
	}
	return StatementLogger{Logger: logger, Options: options}
}

// Log records a statement that started at started and ended with err.
func (l StatementLogger) Log(op, sql string, params query.Params, started time.Time, err error) {
	elapsed := time.Since(started)
	fields := []zap.Field{
		zap.String("operation", op),
		zap.String("sql", sql),
		zap.Duration("elapsed", elapsed),
	}
	if l.Options.LogParams {
		fields = append(fields, zap.Any("params", params.Map()))
	}

	if err != nil {
		l.Logger.Error("Statement failed", append(fields, zap.Error(err))...)
		return
	}
	if l.Options.SlowStatementThreshold > 0 && elapsed > l.Options.SlowStatementThreshold {
		l.Logger.Warn("Slow statement", fields...)
		return
	}
	l.Logger.Debug("Executed statement", fields...)
}
