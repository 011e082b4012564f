package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/logging"
	"cardsorter/internal/logs"
	"cardsorter/internal/logstream"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		follow  bool
		lines   int
		filters logstream.Filters
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Display daemon logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			apiClient, err := logs.NewStreamClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
			if err != nil {
				return err
			}

			var fallback logstream.TailClient
			if client, err := ctx.dialClient(); err == nil {
				defer client.Close()
				fallback = client
			}

			printed, err := logstream.Stream(cmd.Context(), apiClient, fallback,
				logstream.Options{Lines: lines, Follow: follow, Filters: filters},
				func(evt api.LogEvent) {
					if ctx.jsonOutput() {
						_ = writeJSON(cmd, evt)
						return
					}
					writeLogEvent(out, evt)
				},
				func(line string) { fmt.Fprintln(out, line) },
			)
			if errors.Is(err, logstream.ErrFiltersRequireAPI) {
				return fmt.Errorf("filters need the HTTP API at %s; is the daemon running?", cfg.Paths.APIBind)
			}
			if errors.Is(err, logs.ErrAPIUnavailable) {
				return fmt.Errorf("daemon unreachable: start it with `sorter start`")
			}
			if err != nil {
				return err
			}
			if !printed && !follow {
				fmt.Fprintln(out, "No log entries available")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Follow log output")
	cmd.Flags().IntVarP(&lines, "lines", "n", 10, "Number of lines to show (0 for all)")
	cmd.Flags().StringVar(&filters.Component, "component", "", "Only show events from this component")
	cmd.Flags().StringVar(&filters.RunID, "run", "", "Only show events for this run id")
	cmd.Flags().StringVar(&filters.Level, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filters.Search, "search", "", "Case-insensitive message substring")
	return cmd
}

func writeLogEvent(out io.Writer, evt api.LogEvent) {
	var b strings.Builder
	if ts, ok := api.ParseTime(evt.Timestamp); ok {
		b.WriteString(ts.Local().Format("2006-01-02 15:04:05"))
		b.WriteByte(' ')
	}
	b.WriteString(strings.ToUpper(dashIfEmpty(evt.Level)))
	if evt.Component != "" {
		b.WriteString(" [")
		b.WriteString(evt.Component)
		b.WriteByte(']')
	}
	if subject := logging.FormatSubject(evt.RunID, evt.Slot); subject != "" {
		b.WriteByte(' ')
		b.WriteString(subject)
	}
	b.WriteString(" - ")
	b.WriteString(evt.Message)
	fmt.Fprintln(out, b.String())

	keys := make([]string, 0, len(evt.Fields))
	for k := range evt.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "    %s: %s\n", k, evt.Fields[k])
	}
}
