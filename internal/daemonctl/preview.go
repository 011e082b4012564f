package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/config"
	"cardsorter/internal/daemon"
	"cardsorter/internal/grid"
	"cardsorter/internal/ipc"
	"cardsorter/internal/services"
)

// Preview asks the daemon for an assignment and computes one locally when the
// daemon is unreachable or has no grid loaded. The outcome's provenance says
// which path produced it. Validation failures from the daemon are returned
// rather than masked by a local result.
func Preview(ctx context.Context, cfg *config.Config, req api.AssignRequest, logger *slog.Logger) (assign.Outcome, error) {
	reason := previewBackend(cfg.SocketPath(), req)
	if reason.outcome != nil {
		return *reason.outcome, nil
	}
	if reason.err != nil && !errors.Is(reason.err, services.ErrUnavailable) {
		return assign.Outcome{}, reason.err
	}

	result, err := PreviewLocal(ctx, cfg, req, logger)
	if err != nil {
		return assign.Outcome{}, err
	}
	return assign.Local(result, reason.err), nil
}

type backendAttempt struct {
	outcome *assign.Outcome
	err     error
}

func previewBackend(socketPath string, req api.AssignRequest) backendAttempt {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		return backendAttempt{err: fmt.Errorf("%w: daemon unreachable: %v", services.ErrUnavailable, err)}
	}
	defer client.Close()
	resp, err := client.Preview(req)
	if err != nil {
		return backendAttempt{err: err}
	}
	outcome := api.ToOutcome(*resp)
	return backendAttempt{outcome: &outcome}
}

// PreviewLocal builds the configured grid in-process and runs the pure
// assignment against it. Occupancy is unknown locally so overflow is never
// reported.
func PreviewLocal(ctx context.Context, cfg *config.Config, req api.AssignRequest, logger *slog.Logger) (assign.Result, error) {
	areq, err := daemon.AssignRequest(req)
	if err != nil {
		return assign.Result{}, err
	}
	state, err := LoadGrid(ctx, cfg, logger)
	if err != nil {
		return assign.Result{}, err
	}
	return assign.Preview(areq.Name, areq.Confidence, state.AlphabetMap, assign.PolicyFromConfig(cfg)), nil
}

// LoadGrid builds the configured topology without a daemon, falling back to
// the canonical layout the same way the daemon does.
func LoadGrid(ctx context.Context, cfg *config.Config, logger *slog.Logger) (grid.State, error) {
	source, err := grid.NewSource(cfg)
	if err != nil {
		return grid.State{}, err
	}
	return grid.NewModel(source, grid.OptionsFromConfig(cfg), logger).Load(ctx)
}
