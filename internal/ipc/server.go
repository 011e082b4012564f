package ipc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"strings"
	"sync"
	"time"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/daemon"
	"cardsorter/internal/logging"
	"cardsorter/internal/logs"
	"cardsorter/internal/services"
)

// ServiceName is the RPC receiver name registered by the server.
const ServiceName = "Sorter"

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logging.NewComponentLogger(logger, "ipc"), ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun sorter stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	s.logger.Debug("daemon start requested")
	if err := s.daemon.Start(s.ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	s.logger.Info("daemon started via IPC", logging.EventType("daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.logger.Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.logger.Info("daemon stopped via IPC", logging.EventType("daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	*resp = daemon.StatusDTO(s.daemon.Status(s.ctx))
	return nil
}

func (s *service) Preview(req AssignRequest, resp *PreviewResponse) error {
	areq, err := daemon.AssignRequest(req)
	if err != nil {
		return encodeError(err)
	}
	result, err := s.daemon.Preview(s.ctx, areq)
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromOutcome(assign.Backend(result))
	return nil
}

func (s *service) Commit(req AssignRequest, resp *CommitResponse) error {
	areq, err := daemon.AssignRequest(req)
	if err != nil {
		return encodeError(err)
	}
	commit, err := s.daemon.Commit(s.ctx, areq)
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromCommit(commit)
	return nil
}

func (s *service) Reset(_ ResetRequest, resp *ResetResponse) error {
	occ := s.daemon.ResetCounts(s.ctx)
	*resp = api.ResetResponse{OK: true, Occupancy: api.FromOccupancy(occ)}
	return nil
}

func (s *service) Grid(req GridRequest, resp *GridResponse) error {
	if req.Reload {
		state, err := s.daemon.ReloadGrid(s.ctx)
		if err != nil {
			return encodeError(err)
		}
		*resp = api.FromGridState(state, s.daemon.Occupancy())
		return nil
	}
	state, occ := s.daemon.Grid()
	if state.Grid == nil {
		return encodeError(assign.ErrNoGrid)
	}
	*resp = api.FromGridState(state, occ)
	return nil
}

func (s *service) AlphabetMap(_ AlphabetMapRequest, resp *AlphabetMapResponse) error {
	m, err := s.daemon.AlphabetMap()
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromAlphabetMap(m)
	return nil
}

func (s *service) Run(req RunRequest, resp *RunResponse) error {
	var err error
	snap := s.daemon.RunStatus()
	switch strings.ToLower(strings.TrimSpace(req.Action)) {
	case "", "status":
	case "start":
		snap, err = s.daemon.StartRun(s.ctx, daemon.RunRequest{Total: req.Total, Demo: req.Demo})
	case "pause":
		snap, err = s.daemon.PauseRun(s.ctx)
	case "resume":
		snap, err = s.daemon.ResumeRun(s.ctx)
	case "end":
		snap, err = s.daemon.EndRun(s.ctx)
	default:
		err = services.Wrap(services.ErrValidation, "ipc", "run",
			fmt.Sprintf("unknown run action %q", req.Action), nil)
	}
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromRunSnapshot(snap)
	return nil
}

func (s *service) Step(_ StepRequest, resp *StepResponse) error {
	res, err := s.daemon.Step(s.ctx)
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromStepResult(res, s.daemon.PipelineStatus().Pending)
	return nil
}

func (s *service) Enqueue(req EnqueueRequest, resp *EnqueueResponse) error {
	pending, err := s.daemon.Enqueue(s.ctx, api.ToPipelineItems(req.Items)...)
	if err != nil {
		return encodeError(err)
	}
	resp.Accepted = len(req.Items)
	resp.Pending = pending
	return nil
}

func (s *service) Identify(req IdentifyRequest, resp *IdentifyResponse) error {
	res, err := s.daemon.Identify(s.ctx, daemon.IdentifyRequest{
		Name:      req.Name,
		Oracle:    req.Oracle,
		Collector: req.Collector,
		Thumbnail: req.Thumbnail,
		Action:    daemon.IdentifyAction(req.Action),
	})
	if err != nil {
		return encodeError(err)
	}
	*resp = daemon.IdentifyDTO(res)
	return nil
}

func (s *service) EvaluateBatch(req BatchEvaluateRequest, resp *BatchEvaluateResponse) error {
	report, err := s.daemon.EvaluateBatch(s.ctx, req.Records, req.FillAssignments)
	if err != nil {
		return encodeError(err)
	}
	*resp = api.FromBatchReport(report)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return encodeError(err)
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
