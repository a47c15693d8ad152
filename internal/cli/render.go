package cli

import (
	"github.com/alephtav/go-ddd/core/query"
	"github.com/alephtav/go-ddd/internal/definition"
	"github.com/spf13/cobra"
)

// Rendered is the JSON form of a rendered statement.
type Rendered struct {
	SQL    string       `json:"sql"`
	Params query.Params `json:"params"`
}

// NewRenderCommand creates the render command.
func NewRenderCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "render <definition.yaml>",
		Short: "Print the SQL and parameters of a definition",
		Long: `Render a statement definition without connecting to a database.

The SQL keeps its named placeholders (:p1, :p2, ...). Use "-" to read the
definition from standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(rootOpts, args[0], cmd)
		},
	}
}

func runRender(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	def, err := definition.LoadFile(path)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to load definition", err)
	}
	stmt, err := def.Statement(nil)
	if err != nil {
		return formatter.Failure(ExitCommandError, "failed to load definition", err)
	}
	sql, params, err := stmt.Build()
	if err != nil {
		return formatter.Failure(ExitFailure, "failed to build statement", err)
	}

	encoded, err := params.MarshalJSON()
	if err != nil {
		return formatter.Failure(ExitFailure, "failed to encode parameters", err)
	}
	return formatter.Success(Rendered{SQL: sql, Params: params}, sql+"\n"+string(encoded))
}
