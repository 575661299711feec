// Package cli hosts operator commands that run against the live schema.
package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sellerpulse/sellerpulse/internal/clients"
	"github.com/sellerpulse/sellerpulse/internal/margin"
)

// RollupMode enumerates supported execution strategies.
type RollupMode string

const (
	// RollupModeDry previews pending date ranges without aggregating.
	RollupModeDry RollupMode = "dry"
	// RollupModeApply runs the backfill.
	RollupModeApply RollupMode = "apply"
)

// Exit codes. ExitPartial signals that the backfill ran but some dates
// rolled back; operators alert on it separately from hard failures.
const (
	ExitOK      = 0
	ExitError   = 1
	ExitPartial = 10
)

// RollupOptions configures the backfill command execution.
type RollupOptions struct {
	ClientID   int64
	All        bool
	Mode       RollupMode
	JSONOutput bool
	Stdout     io.Writer
	Stderr     io.Writer
}

// ParseRollupArgs parses the rollup subcommand's flags.
func ParseRollupArgs(args []string) (RollupOptions, error) {
	fs := flag.NewFlagSet("rollup", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var opts RollupOptions
	var mode string
	fs.Int64Var(&opts.ClientID, "client", 0, "client id to roll up")
	fs.BoolVar(&opts.All, "all", false, "roll up every active client")
	fs.StringVar(&mode, "mode", string(RollupModeDry), "dry or apply")
	fs.BoolVar(&opts.JSONOutput, "json", false, "emit JSON summaries")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	opts.Mode = RollupMode(strings.ToLower(mode))
	return opts, nil
}

// Planner is the margin service surface the CLI consumes.
type Planner interface {
	Plan(ctx context.Context, clientID int64) (margin.BackfillSummary, error)
	Backfill(ctx context.Context, clientID int64) (margin.BackfillSummary, error)
}

// Directory resolves which clients the command covers.
type Directory interface {
	Get(ctx context.Context, id int64) (*clients.Client, error)
	ListActive(ctx context.Context) ([]clients.Client, error)
}

// RollupCLI runs margin backfills from the command line.
type RollupCLI struct {
	margin  Planner
	clients Directory
	logger  *slog.Logger
}

// NewRollupCLI constructs the command.
func NewRollupCLI(marginSvc Planner, directory Directory, logger *slog.Logger) *RollupCLI {
	return &RollupCLI{margin: marginSvc, clients: directory, logger: logger}
}

// BackfillCommand executes the rollup workflow and returns an exit code.
func (c *RollupCLI) BackfillCommand(ctx context.Context, opts RollupOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	switch opts.Mode {
	case RollupModeDry, RollupModeApply:
	default:
		fmt.Fprintf(opts.Stderr, "rollup: invalid mode %q (expected dry or apply)\n", opts.Mode)
		return ExitError
	}
	if opts.ClientID <= 0 && !opts.All {
		fmt.Fprintln(opts.Stderr, "rollup: --client <id> or --all is required")
		return ExitError
	}
	if opts.ClientID > 0 && opts.All {
		fmt.Fprintln(opts.Stderr, "rollup: --client and --all are mutually exclusive")
		return ExitError
	}

	scope, err := c.resolveScope(ctx, opts)
	if err != nil {
		fmt.Fprintf(opts.Stderr, "rollup: %v\n", err)
		return ExitError
	}
	if len(scope) == 0 {
		fmt.Fprintln(opts.Stderr, "rollup: no active clients")
		return ExitOK
	}

	partial := false
	for _, clientID := range scope {
		var summary margin.BackfillSummary
		if opts.Mode == RollupModeDry {
			summary, err = c.margin.Plan(ctx, clientID)
		} else {
			summary, err = c.margin.Backfill(ctx, clientID)
		}
		if err != nil {
			fmt.Fprintf(opts.Stderr, "rollup: client %d: %v\n", clientID, err)
			return ExitError
		}
		if len(summary.FailedDates) > 0 {
			partial = true
		}
		c.printSummary(opts, summary)
	}

	if partial {
		return ExitPartial
	}
	return ExitOK
}

func (c *RollupCLI) resolveScope(ctx context.Context, opts RollupOptions) ([]int64, error) {
	if opts.ClientID > 0 {
		client, err := c.clients.Get(ctx, opts.ClientID)
		if err != nil {
			return nil, fmt.Errorf("client %d: %w", opts.ClientID, err)
		}
		return []int64{client.ID}, nil
	}
	active, err := c.clients.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	ids := make([]int64, 0, len(active))
	for _, client := range active {
		ids = append(ids, client.ID)
	}
	return ids, nil
}

func (c *RollupCLI) printSummary(opts RollupOptions, summary margin.BackfillSummary) {
	if opts.JSONOutput {
		payload := struct {
			Mode RollupMode `json:"mode"`
			margin.BackfillSummary
		}{Mode: opts.Mode, BackfillSummary: summary}
		enc := json.NewEncoder(opts.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
		return
	}

	if summary.From == "" {
		fmt.Fprintf(opts.Stdout, "client %d: up to date\n", summary.ClientID)
		return
	}
	if opts.Mode == RollupModeDry {
		fmt.Fprintf(opts.Stdout, "client %d: would aggregate %s .. %s\n", summary.ClientID, summary.From, summary.To)
		return
	}
	fmt.Fprintf(opts.Stdout, "client %d: aggregated %d dates (%s .. %s)", summary.ClientID, summary.Aggregated, summary.From, summary.To)
	if summary.UncostedLines > 0 {
		fmt.Fprintf(opts.Stdout, ", %d uncosted lines", summary.UncostedLines)
	}
	if len(summary.FailedDates) > 0 {
		fmt.Fprintf(opts.Stdout, ", failed: %s", strings.Join(summary.FailedDates, ", "))
	}
	fmt.Fprintln(opts.Stdout)
}
