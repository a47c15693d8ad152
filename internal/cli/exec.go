package cli

import (
	"context"
	"fmt"

	"github.com/alephtav/go-ddd/core/observe"
	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/core/record"
	"github.com/alephtav/go-ddd/internal/definition"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	Config string
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{}

	cmd := &cobra.Command{
		Use:   "exec <definition.yaml>",
		Short: "Run a definition against a database",
		Long: `Run a statement definition against the database named in --config.

SELECT statements and statements with RETURNING print their rows, one JSON
object per line. Other statements print the number of affected rows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(cmd.Context(), rootOpts, opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Config, "config", "c", "", "connection config file (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runExec(ctx context.Context, rootOpts *RootOptions, opts *ExecOptions, path string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
	logger := newLogger(rootOpts.Verbose, cmd.ErrOrStderr())
	defer logger.Sync()

	def, err := definition.LoadFile(path)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to load definition", err)
	}
	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to load config", err)
	}

	exec, closeDB, err := Connect(ctx, cfg, logger)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to connect", err)
	}
	defer closeDB()

	if rootOpts.Verbose {
		observed, err := observe.New(exec, logger)
		if err != nil {
			return formatter.Failure(ExitFailure, "failed to observe executor", err)
		}
		observed.RegisterSubscription(observe.SubscriptionOptions{
			Event: observe.StatementFailed,
			Callback: func(_ context.Context, ev observe.Event) error {
				logger.Warn("Statement event", zap.String("id", ev.ID), zap.String("type", string(ev.Type)), zap.Stringp("error", ev.Error))
				return nil
			},
		})
		exec = observed
	}

	stmt, err := def.Statement(exec)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to load definition", err)
	}

	if def.Kind == definition.KindSelect || len(def.Returning) > 0 {
		rows, err := rowsOf(ctx, stmt)
		if err != nil {
			return formatter.Failure(ExitFailure, "failed to run statement", err)
		}
		if formatter.Format == "json" {
			return formatter.JSON(Response{Status: "ok", Data: rows})
		}
		for _, row := range rows {
			if err := formatter.JSON(row); err != nil {
				return err
			}
		}
		return nil
	}

	affected, err := execOf(ctx, stmt)
	if err != nil {
		return formatter.Failure(ExitFailure, "failed to run statement", err)
	}
	return formatter.Success(map[string]int64{"affected": affected}, fmt.Sprintf("%d row(s) affected", affected))
}

type rowsRunner interface {
	Rows(ctx context.Context) ([]record.Row, error)
}

type execRunner interface {
	Exec(ctx context.Context) (int64, error)
}

func rowsOf(ctx context.Context, stmt query.Statement) ([]record.Row, error) {
	r, ok := stmt.(rowsRunner)
	if !ok {
		return nil, fmt.Errorf("%T cannot return rows", stmt)
	}
	return r.Rows(ctx)
}

func execOf(ctx context.Context, stmt query.Statement) (int64, error) {
	r, ok := stmt.(execRunner)
	if !ok {
		return 0, fmt.Errorf("%T cannot be executed", stmt)
	}
	return r.Exec(ctx)
}
