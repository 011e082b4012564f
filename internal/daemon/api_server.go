package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardsorter/internal/api"
	"cardsorter/internal/assign"
	"cardsorter/internal/config"
	"cardsorter/internal/logging"
	"cardsorter/internal/run"
	"cardsorter/internal/services"
)

// maxBodyBytes bounds request bodies; batch evaluations are the largest.
const maxBodyBytes = 8 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	handler http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	if cfg == nil || d == nil {
		return nil, nil
	}
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api-server"),
		daemon: d,
	}
	srv.handler = srv.routes(strings.TrimSpace(cfg.Paths.APIToken))
	return srv, nil
}

func (s *apiServer) routes(token string) http.Handler {
	mux := http.NewServeMux()
	handle := func(path string, h http.HandlerFunc) {
		mux.HandleFunc(path, withRequestID(authMiddleware(token, h)))
	}
	handle("/api/status", s.handleStatus)
	handle("/api/grid", s.handleGrid)
	handle("/api/grid/reload", s.handleGridReload)
	handle("/api/alpha_map", s.handleAlphabetMap)
	handle("/api/assign/preview", s.handlePreview)
	handle("/api/assign", s.handleCommit)
	handle("/api/counts", s.handleCounts)
	handle("/api/counts/reset", s.handleReset)
	handle("/api/run", s.handleRun)
	handle("/api/run/", s.handleRunAction)
	handle("/api/items", s.handleItems)
	handle("/api/identify", s.handleIdentify)
	handle("/api/batch/evaluate", s.handleBatchEvaluate)
	handle("/api/logs", s.handleLogs)
	return mux
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	// A shut down http.Server cannot serve again, so each start gets a fresh one.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log().Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log().Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
		s.server = nil
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

// address returns the bound address, or the configured bind before start.
func (s *apiServer) address() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.bind
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, StatusDTO(s.daemon.Status(r.Context())))
}

// StatusDTO converts a Status into its wire form.
func StatusDTO(st Status) api.DaemonStatus {
	dto := api.DaemonStatus{
		Running:      st.Running,
		PID:          st.PID,
		LockFilePath: st.LockFilePath,
		LogPath:      st.LogPath,
		APIBind:      st.APIBind,
		GridSource:   st.Grid.Source,
		GridFallback: st.Grid.Fallback,
		CatalogCards: st.CatalogCards,
		Threshold:    st.Policy.Threshold,
		Run:          api.FromRunSnapshot(st.Run),
		Occupancy:    api.FromOccupancy(st.Occupancy),
		Pipeline:     api.FromPipelineStatus(st.Pipeline),
	}
	return dto
}

func (s *apiServer) handleGrid(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	state, occ := s.daemon.Grid()
	if state.Grid == nil {
		s.writeFailure(w, r, assign.ErrNoGrid)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromGridState(state, occ))
}

func (s *apiServer) handleGridReload(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	state, err := s.daemon.ReloadGrid(r.Context())
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromGridState(state, s.daemon.Occupancy()))
}

func (s *apiServer) handleAlphabetMap(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	m, err := s.daemon.AlphabetMap()
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromAlphabetMap(m))
}

func (s *apiServer) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	req, ok := s.decodeAssign(w, r)
	if !ok {
		return
	}
	result, err := s.daemon.Preview(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOutcome(assign.Backend(result)))
}

func (s *apiServer) handleCommit(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	req, ok := s.decodeAssign(w, r)
	if !ok {
		return
	}
	commit, err := s.daemon.Commit(r.Context(), req)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromCommit(commit))
}

func (s *apiServer) handleCounts(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromOccupancy(s.daemon.Occupancy()))
}

func (s *apiServer) handleReset(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	occ := s.daemon.ResetCounts(r.Context())
	s.writeJSON(w, http.StatusOK, api.ResetResponse{OK: true, Occupancy: api.FromOccupancy(occ)})
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromRunSnapshot(s.daemon.RunStatus()))
}

func (s *apiServer) handleRunAction(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	action := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/run/"), "/")
	ctx := r.Context()
	switch action {
	case "start":
		var req api.RunStartRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writeRun(w, r)(s.daemon.StartRun(ctx, RunRequest{Total: req.Total, Demo: req.Demo}))
	case "pause":
		s.writeRun(w, r)(s.daemon.PauseRun(ctx))
	case "resume":
		s.writeRun(w, r)(s.daemon.ResumeRun(ctx))
	case "end":
		s.writeRun(w, r)(s.daemon.EndRun(ctx))
	case "step":
		res, err := s.daemon.Step(ctx)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromStepResult(res, s.daemon.PipelineStatus().Pending))
	default:
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown run action %q", action), services.KindNotFound)
	}
}

func (s *apiServer) handleItems(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.writeJSON(w, http.StatusOK, api.FromPipelineStatus(s.daemon.PipelineStatus()))
	case http.MethodPost:
		req, err := api.DecodeEnqueueRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			s.writeFailure(w, r, badRequest(err))
			return
		}
		pending, err := s.daemon.Enqueue(r.Context(), api.ToPipelineItems(req.Items)...)
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusAccepted, api.EnqueueResponse{Accepted: len(req.Items), Pending: pending})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	}
}

func (s *apiServer) handleIdentify(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req api.IdentifyRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	res, err := s.daemon.Identify(r.Context(), IdentifyRequest{
		Name:      req.Name,
		Oracle:    req.Oracle,
		Collector: req.Collector,
		Thumbnail: req.Thumbnail,
		Action:    IdentifyAction(req.Action),
	})
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, IdentifyDTO(res))
}

// IdentifyDTO converts an IdentifyResult into its wire form.
func IdentifyDTO(res IdentifyResult) api.IdentifyResponse {
	dto := api.FromIdentification(res.Identification, res.Name)
	dto.Action = api.IdentifyAction(res.Action)
	dto.Assignment = api.FromResult(res.Result)
	dto.Pending = res.Pending
	if res.Occupancy != nil {
		occ := api.FromOccupancy(*res.Occupancy)
		dto.Occupancy = &occ
	}
	return dto
}

func (s *apiServer) handleBatchEvaluate(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodPost) {
		return
	}
	var req api.BatchEvaluateRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeFailure(w, r, err)
		return
	}
	report, err := s.daemon.EvaluateBatch(r.Context(), req.Records, req.FillAssignments)
	if err != nil {
		s.writeFailure(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.FromBatchReport(report))
}

func (s *apiServer) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !s.allow(w, r, http.MethodGet) {
		return
	}
	hub := s.daemon.LogStream()
	if hub == nil {
		s.writeJSON(w, http.StatusOK, api.LogStreamResponse{Events: []api.LogEvent{}, Next: 0})
		return
	}

	query := r.URL.Query()
	since, _ := strconv.ParseUint(query.Get("since"), 10, 64)
	limit, _ := strconv.Atoi(query.Get("limit"))
	if limit <= 0 {
		limit = 200
	}
	follow := query.Get("follow") == "1" || strings.EqualFold(query.Get("follow"), "true")
	tail := query.Get("tail") == "1" || strings.EqualFold(query.Get("tail"), "true")
	component := strings.TrimSpace(query.Get("component"))
	runID := strings.TrimSpace(query.Get("run"))
	level := strings.TrimSpace(query.Get("level"))
	search := strings.ToLower(strings.TrimSpace(query.Get("search")))

	var resp api.LogStreamResponse
	if tail && since == 0 && !follow {
		raw, next := hub.Tail(limit)
		resp = api.FromLogEvents(raw, next)
	} else {
		raw, next, err := hub.Fetch(r.Context(), since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			s.writeFailure(w, r, err)
			return
		}
		resp = api.FromLogEvents(raw, next)
	}

	filtered := resp.Events[:0]
	for _, evt := range resp.Events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if runID != "" && evt.RunID != runID {
			continue
		}
		if level != "" && logging.ParseLevel(evt.Level) < logging.ParseLevel(level) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(evt.Message), search) {
			continue
		}
		filtered = append(filtered, evt)
	}
	resp.Events = filtered
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) decodeAssign(w http.ResponseWriter, r *http.Request) (assign.Request, bool) {
	body, err := api.DecodeAssignRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		s.writeFailure(w, r, badRequest(err))
		return assign.Request{}, false
	}
	req, err := AssignRequest(body)
	if err != nil {
		s.writeFailure(w, r, err)
		return assign.Request{}, false
	}
	return req, true
}

// AssignRequest converts a decoded preview/commit body, rejecting sorting
// modes other than alpha_exact.
func AssignRequest(body api.AssignRequest) (assign.Request, error) {
	if mode := strings.TrimSpace(body.SortingMode); mode != "" && !strings.EqualFold(mode, config.SortingModeAlphaExact) {
		return assign.Request{}, services.Wrap(services.ErrValidation, "assign", "decode",
			fmt.Sprintf("sorting mode %q is not supported", mode), nil)
	}
	return assign.Request{Name: body.Name, Confidence: body.Confidence.Float(), Thumbnail: body.Thumbnail}, nil
}

func decodeJSON(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return badRequest(err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return badRequest(err)
	}
	return nil
}

func badRequest(err error) error {
	return services.Wrap(services.ErrValidation, "api", "decode", "invalid request body", err)
}

func (s *apiServer) allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	s.writeError(w, http.StatusMethodNotAllowed, "method not allowed", "")
	return false
}

// writeRun adapts a run operation's (snapshot, error) pair.
func (s *apiServer) writeRun(w http.ResponseWriter, r *http.Request) func(run.Snapshot, error) {
	return func(snap run.Snapshot, err error) {
		if err != nil {
			s.writeFailure(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.FromRunSnapshot(snap))
	}
}

func (s *apiServer) writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	kind := services.FailureKind(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.log()), "api request failed", "api_request_failed",
			logging.Error(err),
			logging.String("path", r.URL.Path),
		)
	}
	s.writeError(w, status, err.Error(), kind)
}

func statusForKind(kind string) int {
	switch kind {
	case services.KindValidation:
		return http.StatusBadRequest
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindConflict:
		return http.StatusConflict
	case services.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log().Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}

func (s *apiServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return logging.NewNop()
}

// withRequestID tags the request context so log lines can be correlated.
func withRequestID(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next(w, r.WithContext(services.WithRequestID(r.Context(), id)))
	}
}
