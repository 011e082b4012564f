package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"cardsorter/internal/api"
	"cardsorter/internal/ipc"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Control the sorting run",
	}

	runAction := func(action, use, short string) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			RunE: func(cmd *cobra.Command, args []string) error {
				return doRunAction(cmd, ctx, ipc.RunRequest{Action: action})
			},
		}
	}

	var (
		total int
		demo  bool
	)
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start a new run from idle or ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ipc.RunRequest{Action: "start", Total: total}
			if cmd.Flags().Changed("demo") {
				req.Demo = &demo
			}
			return doRunAction(cmd, ctx, req)
		},
	}
	startCmd.Flags().IntVar(&total, "total", 0, "Number of items expected in the run (0 keeps the configured value)")
	startCmd.Flags().BoolVar(&demo, "demo", false, "Drive the run with the synthetic demo source")

	stepCmd := &cobra.Command{
		Use:   "step",
		Short: "Process the next pending item",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *ipc.Client) error {
				resp, err := client.Step()
				if err != nil {
					return err
				}
				return ctx.emit(cmd, resp, func() {
					renderStep(cmd.OutOrStdout(), *resp)
				})
			})
		},
	}

	runCmd.AddCommand(
		runAction("status", "status", "Show run progress"),
		startCmd,
		runAction("pause", "pause", "Pause the active run"),
		runAction("resume", "resume", "Resume a paused run"),
		runAction("end", "end", "End the active run"),
		stepCmd,
	)
	return runCmd
}

func doRunAction(cmd *cobra.Command, ctx *commandContext, req ipc.RunRequest) error {
	return ctx.withClient(func(client *ipc.Client) error {
		resp, err := client.Run(req)
		if err != nil {
			return err
		}
		return ctx.emit(cmd, resp, func() {
			fmt.Fprint(cmd.OutOrStdout(), renderRunTable(*resp))
		})
	})
}

func renderRunTable(run api.RunStatus) string {
	rows := [][]string{
		{"State", run.State},
		{"Run", dashIfEmpty(run.RunID)},
		{"Progress", fmt.Sprintf("%d / %d (%.1f%%)", run.Completed, run.Total, run.ProgressPercent)},
		{"Good", strconv.Itoa(run.Good)},
		{"Errors", strconv.Itoa(run.Err)},
		{"Throughput", fmt.Sprintf("%.1f/min", run.ThroughputPerMinute)},
		{"Current", dashIfEmpty(run.CurrentItemLabel)},
		{"Ticking", yesNo(run.Ticking)},
	}
	if run.LastTickError != "" {
		rows = append(rows, []string{"Last error", run.LastTickError})
	}
	out := renderTable([]string{"Field", "Value"}, rows, nil)
	if len(run.RecentErrors) == 0 {
		return out
	}
	errRows := make([][]string, 0, len(run.RecentErrors))
	for _, e := range run.RecentErrors {
		errRows = append(errRows, []string{e.ID, dashIfEmpty(e.Name), e.Reason})
	}
	return out + renderTable([]string{"Item", "Name", "Reason"}, errRows, nil)
}

func renderStep(out io.Writer, resp api.StepResponse) {
	fmt.Fprintf(out, "%s -> %s (%s)\n", resp.Item.Name, resp.Assignment.Cell, resp.Assignment.Reason)
	if resp.MoveError != "" {
		fmt.Fprintf(out, "Move failed: %s\n", resp.MoveError)
	}
	fmt.Fprintf(out, "Pending: %d\n", resp.Pending)
}
