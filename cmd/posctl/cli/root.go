// Package cli implements the posctl operator commands.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/counterpos/counterpos/internal/app"
	"github.com/counterpos/counterpos/jobs"
)

// JobQueue is the part of JobsCLI the commands use.
type JobQueue interface {
	Trigger(ctx context.Context, name string) (string, error)
	InspectQueue(ctx context.Context) (QueueStats, error)
	Close() error
}

// Deps lets tests replace configuration loading and the queue.
type Deps struct {
	LoadConfig func() (*app.Config, error)
	OpenQueue  func(cfg *app.Config) JobQueue
}

// DefaultDeps reads the environment and dials Redis.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: app.LoadConfig,
		OpenQueue:  func(cfg *app.Config) JobQueue { return NewJobsCLI(cfg.RedisAddr) },
	}
}

// NewRootCommand builds the posctl command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "posctl",
		Short:         "Operate a counterpos deployment",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newJobsCommand(deps), newConfigCommand(deps))
	return root
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and trigger background jobs"}

	trigger := &cobra.Command{
		Use:       "trigger <name>",
		Short:     "Enqueue a periodic job now",
		Long:      "Enqueue a periodic job now. Known jobs: " + strings.Join(jobs.Triggerable, ", "),
		Args:      cobra.ExactArgs(1),
		ValidArgs: jobs.Triggerable,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withQueue(deps, func(q JobQueue) error {
				id, err := q.Trigger(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s as %s\n", args[0], id)
				return nil
			})
		},
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print default queue counters as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withQueue(deps, func(q JobQueue) error {
				s, err := q.InspectQueue(cmd.Context())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), s)
			})
		},
	}

	cmd.AddCommand(trigger, stats)
	return cmd
}

func newConfigCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration helpers"}
	cmd.AddCommand(&cobra.Command{
		Use:   "print",
		Short: "Print the effective configuration without secrets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := deps.LoadConfig()
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), cfg)
		},
	})
	return cmd
}

func withQueue(deps Deps, fn func(JobQueue) error) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return err
	}
	q := deps.OpenQueue(cfg)
	defer func() { _ = q.Close() }()
	return fn(q)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
