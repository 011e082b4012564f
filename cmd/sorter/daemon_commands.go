package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cardsorter/internal/daemonctl"
	"cardsorter/internal/daemonrun"
)

const (
	stopGracePeriod  = 5 * time.Second
	startWaitTimeout = 10 * time.Second
)

func newDaemonRunCommand(ctx *commandContext) *cobra.Command {
	var diagnostic bool
	cmd := &cobra.Command{
		Use:         "daemon",
		Short:       "Run the sorter daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:   ctx.logLevel(cfg),
				Diagnostic: diagnostic,
			})
		},
	}
	cmd.Flags().BoolVar(&diagnostic, "diagnostic", false, "Write an additional DEBUG JSON log under logdir/debug")
	return cmd
}

func newDaemonCommands(ctx *commandContext) []*cobra.Command {
	var startDiagnostic bool
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the sorter daemon in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.EnsureStarted(ctx.socketPath(), exe, daemonLaunchOptions(ctx, startDiagnostic), startWaitTimeout)
			if err != nil {
				return err
			}
			if result.Launched {
				fmt.Fprintln(stdout, "Daemon not running, launching...")
			}
			printStartState(stdout, result, "Daemon started")
			return nil
		},
	}
	startCmd.Flags().BoolVar(&startDiagnostic, "diagnostic", false, "Write an additional DEBUG JSON log under logdir/debug")

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the sorter daemon and terminate its process",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			result, err := daemonctl.StopAndTerminate(ctx.socketPath(), ctx.configValue(), stopGracePeriod)
			if errors.Is(err, daemonctl.ErrDaemonNotRunning) {
				fmt.Fprintln(stdout, "Daemon is not running")
				return nil
			}
			if err != nil {
				return err
			}
			if result.ForcedKill && result.PID > 0 {
				fmt.Fprintf(stdout, "Daemon did not exit in time; killed pid %d\n", result.PID)
			}
			fmt.Fprintln(stdout, "Daemon stopped")
			return nil
		},
	}

	var restartDiagnostic bool
	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: "Restart the sorter daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			stdout := cmd.OutOrStdout()
			exe, err := daemonExecutable()
			if err != nil {
				return err
			}
			result, err := daemonctl.Restart(ctx.configValue(), exe, daemonLaunchOptions(ctx, restartDiagnostic), stopGracePeriod, startWaitTimeout)
			if err != nil {
				return err
			}
			if result.WasRunning {
				fmt.Fprintln(stdout, "Daemon stopped")
			}
			printStartState(stdout, result.Start, "Daemon restarted")
			return nil
		},
	}
	restartCmd.Flags().BoolVar(&restartDiagnostic, "diagnostic", false, "Write an additional DEBUG JSON log under logdir/debug")

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon, grid, run and pipeline status",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := daemonctl.BuildStatusSnapshot(cmd.Context(), ctx.configValue(), ctx.cliLogger())
			if err != nil {
				return err
			}
			return ctx.emit(cmd, snap, func() {
				renderStatus(cmd.OutOrStdout(), snap, shouldColorize(cmd.OutOrStdout()))
			})
		},
	}

	return []*cobra.Command{startCmd, stopCmd, restartCmd, statusCmd}
}

func printStartState(out io.Writer, result daemonctl.StartResult, startedText string) {
	switch result.State {
	case daemonctl.StartStateStarted:
		fmt.Fprintln(out, startedText)
	case daemonctl.StartStateAlreadyRunning:
		fmt.Fprintln(out, "Daemon already running")
	case daemonctl.StartStateRequested:
		if msg := strings.TrimSpace(result.Message); msg != "" {
			fmt.Fprintln(out, msg)
			return
		}
		fmt.Fprintln(out, "Start request sent")
	}
}

func renderStatus(out io.Writer, snap daemonctl.StatusSnapshot, colorize bool) {
	for _, line := range renderSectionHeader("System Status", colorize) {
		fmt.Fprintln(out, line)
	}
	for _, line := range snap.Checks {
		fmt.Fprintln(out, renderStatusLine(line.Label, statusKindFromSeverity(line.Severity), line.Detail, colorize))
	}
	if !snap.Daemon.Running {
		return
	}

	run := snap.Daemon.Run
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Run", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderRunTable(run))

	occ := snap.Daemon.Occupancy
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Occupancy", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Placed", statusInfo, fmt.Sprintf("%d total, %d in error slot %s", occ.Total, occ.ErrorCount, occ.ErrorSlot), colorize))
	nearKind := statusOK
	if len(occ.NearFull) > 0 {
		nearKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Near full", nearKind, joinOrDash(occ.NearFull), colorize))
	fullKind := statusOK
	if len(occ.Full) > 0 {
		fullKind = statusError
	}
	fmt.Fprintln(out, renderStatusLine("Full", fullKind, joinOrDash(occ.Full), colorize))

	p := snap.Daemon.Pipeline
	fmt.Fprintln(out)
	for _, line := range renderSectionHeader("Pipeline", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Pending", statusInfo, fmt.Sprintf("%d (auto: %s)", p.Pending, yesNo(p.AutoActive)), colorize))
	moveKind := statusOK
	if p.MoveFailures > 0 {
		moveKind = statusWarn
	}
	fmt.Fprintln(out, renderStatusLine("Processed", moveKind, fmt.Sprintf("%d, %d move failures", p.Processed, p.MoveFailures), colorize))
}

func daemonExecutable() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("resolve executable: %w", err)
	}
	return exe, nil
}

func daemonLaunchOptions(ctx *commandContext, diagnostic bool) daemonctl.LaunchOptions {
	opts := daemonctl.LaunchOptions{Diagnostic: diagnostic, ConfigPath: ctx.configPath()}
	if ctx.logLevelFlag != nil {
		opts.LogLevel = strings.TrimSpace(*ctx.logLevelFlag)
	}
	return opts
}
