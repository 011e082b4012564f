package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/batch"
	"cardsorter/internal/daemonctl"
	"cardsorter/internal/ipc"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Offline batch evaluation",
	}

	var (
		fill bool
		rows bool
	)
	evalCmd := &cobra.Command{
		Use:   "evaluate <results.json>",
		Short: "Score recorded identifications against expected names and cells",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := batch.Load(args[0])
			if err != nil {
				return err
			}
			report, err := evaluateBatch(cmd, ctx, records, fill)
			if err != nil {
				return err
			}
			return ctx.emit(cmd, report, func() {
				out := cmd.OutOrStdout()
				if rows {
					renderBatchRows(out, report.Rows)
				}
				renderBatchSummary(out, report.Summary)
			})
		},
	}
	evalCmd.Flags().BoolVar(&fill, "fill", false, "Compute missing assigned cells with the current alphabet map")
	evalCmd.Flags().BoolVar(&rows, "rows", false, "Print every classified record")

	batchCmd.AddCommand(evalCmd)
	return batchCmd
}

// evaluateBatch runs on the daemon when reachable so --fill uses the live
// grid. Without a daemon the configured grid is loaded in-process.
func evaluateBatch(cmd *cobra.Command, ctx *commandContext, records []batch.Record, fill bool) (api.BatchEvaluateResponse, error) {
	client, err := ctx.dialClient()
	if err == nil {
		defer client.Close()
		resp, err := client.EvaluateBatch(ipc.BatchEvaluateRequest{Records: records, FillAssignments: fill})
		if err != nil {
			return api.BatchEvaluateResponse{}, err
		}
		return *resp, nil
	}

	if fill {
		cfg := ctx.configValue()
		state, err := daemonctl.LoadGrid(cmd.Context(), cfg, ctx.cliLogger())
		if err != nil {
			return api.BatchEvaluateResponse{}, err
		}
		records = batch.FillAssignments(records, state.AlphabetMap, assign.PolicyFromConfig(cfg))
	}
	return api.FromBatchReport(batch.Evaluate(records)), nil
}

func renderBatchRows(out io.Writer, rows []batch.Row) {
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		score := "-"
		if row.Score != nil {
			score = strconv.FormatFloat(*row.Score, 'f', -1, 64)
		}
		table = append(table, []string{
			row.Filename,
			dashIfEmpty(row.ExpectedName),
			dashIfEmpty(row.IdentifiedName),
			score,
			dashIfEmpty(row.ExpectedSlot),
			dashIfEmpty(row.AssignedSlot),
			string(row.Match),
		})
	}
	fmt.Fprint(out, renderTable(
		[]string{"File", "Expected", "Identified", "Score", "Expected Cell", "Assigned Cell", "Match"},
		table,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}

func renderBatchSummary(out io.Writer, s batch.Summary) {
	rows := [][]string{
		{"Records", strconv.Itoa(s.Total)},
		{"Errors", strconv.Itoa(s.Errors)},
		{"Evaluated", strconv.Itoa(s.Evaluated)},
		{"Name accuracy", fmt.Sprintf("%s (%d)", formatPercent(s.NameAccuracy), s.NameMatches)},
		{"Cell accuracy", fmt.Sprintf("%s (%d)", formatPercent(s.CellAccuracy), s.CellMatches)},
		{"Both correct", fmt.Sprintf("%s (%d)", formatPercent(s.BothAccuracy), s.BothMatches)},
		{"Name only", strconv.Itoa(s.NameOnly)},
		{"Cell only", strconv.Itoa(s.SlotOnly)},
		{"Neither", strconv.Itoa(s.NoMatch)},
		{"Mean score", fmt.Sprintf("%.3f ± %.3f", s.MeanScore, s.ScoreStdDev)},
	}
	fmt.Fprint(out, renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
