package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/daemonctl"
	"cardsorter/internal/ipc"
)

type assignFlags struct {
	confidence  float64
	thumbnail   string
	sortingMode string
}

func (f *assignFlags) bind(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.confidence, "confidence", api.DefaultConfidence, "Recognition confidence in [0,1]")
	cmd.Flags().StringVar(&f.thumbnail, "thumbnail", "", "Thumbnail reference stored with the placement")
	cmd.Flags().StringVar(&f.sortingMode, "sorting-mode", "", "Sorting mode (only alpha_exact is supported)")
}

func (f *assignFlags) request(name string) api.AssignRequest {
	return api.AssignRequest{
		Name:        name,
		Confidence:  api.Confidence(f.confidence),
		Thumbnail:   strings.TrimSpace(f.thumbnail),
		SortingMode: strings.TrimSpace(f.sortingMode),
	}
}

func newPreviewCommand(ctx *commandContext) *cobra.Command {
	var flags assignFlags
	cmd := &cobra.Command{
		Use:   "preview <name>",
		Short: "Show the slot a card would be assigned without committing",
		Long: "Show the slot a card would be assigned without committing.\n\n" +
			"The daemon answers when it is running. Otherwise the assignment is\n" +
			"computed locally from the configured grid and marked as such.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outcome, err := daemonctl.Preview(cmd.Context(), ctx.configValue(), flags.request(args[0]), ctx.cliLogger())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, api.FromOutcome(outcome), func() {
				renderOutcome(cmd.OutOrStdout(), outcome)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func renderOutcome(out io.Writer, outcome assign.Outcome) {
	fmt.Fprintf(out, "Cell:       %s\n", outcome.Cell)
	fmt.Fprintf(out, "Reason:     %s\n", outcome.Reason)
	fmt.Fprintf(out, "Letter:     %s\n", dashIfEmpty(outcome.FirstLetter))
	fmt.Fprintf(out, "Computed:   %s\n", outcome.Provenance)
	if outcome.FallbackReason != "" {
		fmt.Fprintf(out, "Fallback:   %s\n", outcome.FallbackReason)
	}
}

func newCommitCommand(ctx *commandContext) *cobra.Command {
	var flags assignFlags
	cmd := &cobra.Command{
		Use:   "commit <name>",
		Short: "Assign a card and record the placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Commit(flags.request(args[0]))
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					out := cmd.OutOrStdout()
					fmt.Fprintf(out, "Placed in %s (%s)\n", resp.Cell, resp.Reason)
					renderOccupancy(out, resp.OccupancySnapshot)
				})
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newCountsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "counts",
		Short: "Show per-slot occupancy",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				status, err := client.Status()
				if err != nil {
					return err
				}
				return ctx.emit(cmd, status.Occupancy, func() {
					renderOccupancy(cmd.OutOrStdout(), status.Occupancy)
				})
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear all slot counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Reset()
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					fmt.Fprintln(cmd.OutOrStdout(), "Occupancy cleared")
				})
			})
		},
	}
}

func renderOccupancy(out io.Writer, occ api.Occupancy) {
	ids := make([]string, 0, len(occ.Counts))
	for id, count := range occ.Counts {
		if count > 0 || id == occ.ErrorSlot {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	near := make(map[string]bool, len(occ.NearFull))
	for _, id := range occ.NearFull {
		near[id] = true
	}
	full := make(map[string]bool, len(occ.Full))
	for _, id := range occ.Full {
		full[id] = true
	}

	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		state := ""
		switch {
		case id == occ.ErrorSlot:
			state = "error slot"
		case full[id]:
			state = "full"
		case near[id]:
			state = "near full"
		}
		rows = append(rows, []string{id, strconv.Itoa(occ.Counts[id]), state})
	}
	fmt.Fprint(out, renderTable([]string{"Slot", "Count", "State"}, rows, []columnAlignment{alignLeft, alignRight, alignLeft}))
	fmt.Fprintf(out, "Total placed: %d (error slot %s: %d)\n", occ.Total, occ.ErrorSlot, occ.ErrorCount)
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
