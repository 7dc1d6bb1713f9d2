package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"Nova-Assistant/internal/agent"
	"Nova-Assistant/internal/auth"
	xerrors "Nova-Assistant/internal/errors"
	"Nova-Assistant/internal/journal"
	"Nova-Assistant/internal/memory"
	"Nova-Assistant/internal/observability/metrics"
	"Nova-Assistant/internal/session"
	"Nova-Assistant/internal/tools"
	"Nova-Assistant/pkg/logger"
)

// Dependencies 汇集 API 服务依赖的各个组件。
type Dependencies struct {
	Planner    *agent.Planner
	Executor   *agent.StepExecutor
	Sessions   session.Store
	Memory     memory.Repository
	Contexts   *memory.ContextBuilder
	Recorder   *journal.Recorder
	Auth       *auth.Service
	ToolHealth tools.HealthChecker
}

// Server 负责暴露 REST 接口，供外部驱动助手执行。
type Server struct {
	addr string
	deps Dependencies
}

// NewServer 构造 API 服务实例。
func NewServer(addr string, deps Dependencies) *Server {
	return &Server{addr: addr, deps: deps}
}

// Handler 组装完整的路由，认证中间件只覆盖 /nova/ 前缀。
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	novaMux := http.NewServeMux()
	novaMux.HandleFunc("/nova/process", s.observed("process", s.handleProcess))
	novaMux.HandleFunc("/nova/confirm", s.observed("confirm", s.handleConfirm))
	novaMux.HandleFunc("/nova/history", s.observed("history", s.handleHistory))
	novaMux.HandleFunc("/nova/status", s.observed("status", s.handleStatus))

	var novaHandler http.Handler = novaMux
	if s.deps.Auth != nil {
		novaHandler = s.deps.Auth.Middleware(auth.MiddlewareConfig{
			RequiredPermissions: map[string][]string{
				http.MethodPost: {"nova:process"},
				http.MethodGet:  {"nova:read"},
			},
			AuditEvent: "nova_api",
		})(novaMux)
	}
	mux.Handle("/nova/", novaHandler)

	mux.HandleFunc("/health", s.observed("health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))
	mux.Handle("/metrics", metrics.Handler())

	return mux
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// observed 包装处理函数，统一记录请求指标。
func (s *Server) observed(name string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		mw := &metricsWriter{ResponseWriter: w, status: http.StatusOK}
		handler(mw, r)
		metrics.ObserveHTTPRequest(name, r.Method, mw.status, time.Since(start))
	}
}

type metricsWriter struct {
	http.ResponseWriter
	status int
}

func (w *metricsWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// handleProcess 处理一轮完整的输入：取会话、拼上下文、跑编排、存状态。
func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "仅支持 POST")
		return
	}

	var req ProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "请求体解析失败")
		return
	}
	if req.UserID == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "user_id 与 content 不能为空")
		return
	}

	ctx := r.Context()
	if err := s.deps.Sessions.Acquire(ctx, req.UserID); err != nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeOf(err)), "会话正忙，请稍后重试")
		return
	}
	defer s.deps.Sessions.Release(req.UserID)

	if _, err := s.deps.Sessions.GetOrCreate(ctx, req.UserID); err != nil {
		writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
		return
	}

	memoryContext := s.deps.Contexts.BuildContext(ctx, req.UserID)
	for k, v := range req.Context {
		memoryContext[k] = v
	}

	state := agent.NewState(req.Content, memoryContext)
	s.orchestrator(req.UserID).Run(ctx, state)

	if err := s.deps.Sessions.Save(ctx, req.UserID, state); err != nil {
		writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
		return
	}

	if state.RequiresConfirmation && !state.ConfirmationDecided() {
		if err := s.deps.Sessions.MarkPending(ctx, req.UserID, true); err != nil {
			writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
			return
		}
		metrics.ObserveConfirmation("pending")

		proposed := &ProposedAction{Intent: "unknown", RiskLevel: "unknown", Description: state.FinalResponse}
		if state.Plan != nil {
			proposed.Intent = state.Plan.Intent
			proposed.RiskLevel = string(state.Plan.RiskLevel)
		}
		writeJSON(w, http.StatusOK, ProcessResponse{
			Status:               "confirmation_required",
			Message:              state.FinalResponse,
			ProposedAction:       proposed,
			RequiresUserApproval: true,
		})
		return
	}

	if err := s.deps.Sessions.MarkPending(ctx, req.UserID, false); err != nil {
		logger.L().Warn("清除确认标记失败", "user_id", req.UserID, "error", err)
	}
	writeJSON(w, http.StatusOK, successResponse(state, []string{"Continue with next task if needed"}))
}

// handleConfirm 处理确认或取消：没有挂起确认时直接拒绝请求。
func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "", "仅支持 POST")
		return
	}

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "请求体解析失败")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "user_id 不能为空")
		return
	}

	ctx := r.Context()
	if err := s.deps.Sessions.Acquire(ctx, req.UserID); err != nil {
		writeError(w, http.StatusServiceUnavailable, string(xerrors.CodeOf(err)), "会话正忙，请稍后重试")
		return
	}
	defer s.deps.Sessions.Release(req.UserID)

	sess, err := s.deps.Sessions.Get(ctx, req.UserID)
	if err != nil || !sess.ConfirmationPending || sess.State == nil {
		writeError(w, http.StatusConflict,
			string(session.CodeNoPendingConfirmation),
			session.ErrNoPendingConfirmation.Error())
		return
	}

	state := sess.State

	if !req.Confirm {
		state.GrantConfirmation(false)
		metrics.ObserveConfirmation("denied")
		if err := s.deps.Sessions.Save(ctx, req.UserID, state); err != nil {
			writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
			return
		}
		if err := s.deps.Sessions.MarkPending(ctx, req.UserID, false); err != nil {
			logger.L().Warn("清除确认标记失败", "user_id", req.UserID, "error", err)
		}
		writeJSON(w, http.StatusOK, ProcessResponse{
			Status:       "success",
			Message:      "Action cancelled as requested",
			ActionsTaken: []string{"Cancelled pending action"},
		})
		return
	}

	state.GrantConfirmation(true)
	metrics.ObserveConfirmation("granted")
	// 恢复即从规划重新开始：同样的输入重新生成计划，再凭确认结果快进执行。
	s.orchestrator(req.UserID).Run(ctx, state)

	if err := s.deps.Sessions.Save(ctx, req.UserID, state); err != nil {
		writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
		return
	}
	if err := s.deps.Sessions.MarkPending(ctx, req.UserID, false); err != nil {
		logger.L().Warn("清除确认标记失败", "user_id", req.UserID, "error", err)
	}
	writeJSON(w, http.StatusOK, successResponse(state, nil))
}

// handleHistory 返回指定用户的动作历史。
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "仅支持 GET")
		return
	}

	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, string(xerrors.CodeInvalidArgument), "user_id 不能为空")
		return
	}
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.deps.Memory.RecentActions(r.Context(), userID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, string(xerrors.CodeOf(err)), err.Error())
		return
	}

	items := make([]HistoryItem, 0, len(records))
	for _, record := range records {
		items = append(items, HistoryItem{
			UserInput:     record.UserInput,
			Intent:        record.Intent,
			ResultSummary: record.ResultSummary,
			CreatedAt:     record.CreatedAt.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, HistoryResponse{UserID: userID, Actions: items})
}

// handleStatus 汇报各依赖组件的可用状态。
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "", "仅支持 GET")
		return
	}

	services := map[string]string{}

	if s.deps.ToolHealth != nil {
		probeCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		if err := s.deps.ToolHealth.Health(probeCtx); err != nil {
			services["tool_backend"] = "unreachable"
		} else {
			services["tool_backend"] = "ok"
		}
		cancel()
	} else {
		services["tool_backend"] = "not_configured"
	}

	writeJSON(w, http.StatusOK, StatusResponse{
		Status:    "ok",
		Services:  services,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// orchestrator 为一次请求组装编排器，留痕记录器绑定当前用户。
func (s *Server) orchestrator(userID string) *agent.Orchestrator {
	opts := []agent.OrchestratorOption{}
	if s.deps.Recorder != nil {
		opts = append(opts, agent.WithActionLogger(s.deps.Recorder.ForUser(userID)))
	}
	return agent.NewOrchestrator(s.deps.Planner, s.deps.Executor, opts...)
}

func successResponse(state *agent.State, nextSteps []string) ProcessResponse {
	actions := make([]string, 0, len(state.Results))
	for _, result := range state.Results {
		actions = append(actions, fmt.Sprintf("Step %d: %s", result.StepIndex, result.Tool))
	}
	message := state.FinalResponse
	if message == "" {
		message = "Completed successfully"
	}
	return ProcessResponse{
		Status:       "success",
		Message:      message,
		ActionsTaken: actions,
		NextSteps:    nextSteps,
		Results:      state.Results,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Status: "error", Code: code, Error: message})
}
