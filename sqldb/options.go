package sqldb

import (
	"database/sql"
	"time"
)

// Options configures an Executor and the pool it runs on.
type Options struct {
	// LogParams adds bound values to statement logs.
	LogParams bool `yaml:"log_params"`
	// SlowStatementThreshold logs statements running longer at warn level.
	// Zero disables the check.
	SlowStatementThreshold time.Duration `yaml:"slow_statement_threshold"`
	MaxOpenConns           int           `yaml:"max_open_conns"`
	MaxIdleConns           int           `yaml:"max_idle_conns"`
	ConnMaxLifetime        time.Duration `yaml:"conn_max_lifetime"`
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() *Options {
	return &Options{
		LogParams:              false,
		SlowStatementThreshold: 500 * time.Millisecond,
		MaxOpenConns:           0,
		MaxIdleConns:           2,
		ConnMaxLifetime:        0,
	}
}

// Configure applies the pool settings to db.
func (o *Options) Configure(db *sql.DB) {
	if o.MaxOpenConns > 0 {
		db.SetMaxOpenConns(o.MaxOpenConns)
	}
	if o.MaxIdleConns > 0 {
		db.SetMaxIdleConns(o.MaxIdleConns)
	}
	if o.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(o.ConnMaxLifetime)
	}
}
