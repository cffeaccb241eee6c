package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Covenant-Systems/pactum/pkg/auth"
	"github.com/Covenant-Systems/pactum/pkg/contracts"
	"github.com/Covenant-Systems/pactum/pkg/lifecycle"
	"github.com/Covenant-Systems/pactum/pkg/observability"
	"github.com/Covenant-Systems/pactum/pkg/templates"
)

// Server exposes lifecycle commands and queries over HTTP.
type Server struct {
	orc     *lifecycle.Orchestrator
	library *templates.Library
	obs     *observability.Provider
	logger  *slog.Logger
	started time.Time
}

// NewServer wires the HTTP surface over an orchestrator.
func NewServer(orc *lifecycle.Orchestrator, library *templates.Library) *Server {
	return &Server{
		orc:     orc,
		library: library,
		logger:  slog.Default().With("component", "api"),
		started: time.Now(),
	}
}

// WithLogger overrides the default logger.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithObservability wires span and metric recording per request.
func (s *Server) WithObservability(obs *observability.Provider) *Server {
	s.obs = obs
	return s
}

// Routes returns the route table. Middleware is layered by the caller.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /readiness", s.handleReadiness)

	mux.HandleFunc("POST /api/v1/contracts", s.command("submit", s.handleSubmit))
	mux.HandleFunc("GET /api/v1/contracts", s.handleList)
	mux.HandleFunc("GET /api/v1/contracts/{id}", s.handleGet)
	mux.HandleFunc("GET /api/v1/contracts/{id}/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/contracts/{id}/stream", s.handleStream)
	mux.HandleFunc("GET /api/v1/contracts/{id}/report", s.handleReport)

	mux.HandleFunc("POST /api/v1/contracts/{id}/approve", s.command("approve", s.handleApprove))
	mux.HandleFunc("POST /api/v1/contracts/{id}/reject", s.command("reject", s.handleReject))
	mux.HandleFunc("POST /api/v1/contracts/{id}/renegotiate", s.command("renegotiate", s.handleRenegotiate))
	mux.HandleFunc("POST /api/v1/contracts/{id}/reroute", s.command("reroute", s.handleReroute))
	mux.HandleFunc("POST /api/v1/contracts/{id}/accept-proposal", s.command("accept_proposal", s.handleAcceptProposal))
	mux.HandleFunc("POST /api/v1/contracts/{id}/execute", s.command("execute", s.handleExecute))
	mux.HandleFunc("POST /api/v1/contracts/{id}/retry-analysis", s.command("retry_analysis", s.handleRetryAnalysis))

	mux.HandleFunc("GET /api/v1/templates", s.handleTemplates)
	mux.HandleFunc("GET /api/v1/precedents", s.handlePrecedents)

	return mux
}

// command wraps a mutating handler with span and metric recording.
func (s *Server) command(name string, next http.HandlerFunc) http.HandlerFunc {
	if s.obs == nil {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		attrs := observability.SessionOperation(r.PathValue("id"), "", name)
		ctx, finish := s.obs.TrackOperation(r.Context(), "lifecycle."+name, attrs...)
		capture := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(capture, r.WithContext(ctx))
		if capture.status >= 400 {
			finish(&ProblemDetail{Status: capture.status, Title: http.StatusText(capture.status)})
		} else {
			finish(nil)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	// Listing sessions exercises the store round trip.
	if _, err := s.orc.List(r.Context()); err != nil {
		WriteErrorR(w, r, http.StatusServiceUnavailable, "Not Ready", "session store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.SubmitRequest
	if err := decodeBody(w, r, submitSchema, &req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.SubmittedBy == "" {
		req.SubmittedBy = auth.ActorID(r.Context())
	}

	id, err := s.orc.Submit(r.Context(), req)
	if err != nil {
		WriteFault(w, r, err)
		return
	}

	session, err := s.orc.GetStatus(r.Context(), id)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/contracts/"+id)
	writeJSON(w, http.StatusAccepted, session)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.orc.List(r.Context())
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	session, err := s.orc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	after, err := afterSeq(r.URL.Query().Get("after"))
	if err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	events, err := s.orc.Events(r.Context(), r.PathValue("id"), after)
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": r.PathValue("id"),
		"events":     events,
		"count":      len(events),
	})
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.orc.Report(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.ApproveRequest
	if err := decodeBody(w, r, approveSchema, &req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.ApproverID == "" {
		req.ApproverID = auth.ActorID(r.Context())
	}
	if req.Role == "" {
		if p, ok := auth.PrincipalFrom(r.Context()); ok {
			req.Role = p.Role
		}
	}

	if err := s.orc.Approve(r.Context(), r.PathValue("id"), req); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

type rejectBody struct {
	ApproverID string `json:"approver_id"`
	Reason     string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectBody
	if err := decodeBody(w, r, rejectSchema, &req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.ApproverID == "" {
		req.ApproverID = auth.ActorID(r.Context())
	}

	if err := s.orc.Reject(r.Context(), r.PathValue("id"), req.ApproverID, req.Reason); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleRenegotiate(w http.ResponseWriter, r *http.Request) {
	var req lifecycle.RenegotiateRequest
	if err := decodeBody(w, r, renegotiateSchema, &req); err != nil {
		WriteErrorR(w, r, http.StatusBadRequest, "Bad Request", err.Error())
		return
	}
	if req.SubmittedBy == "" {
		req.SubmittedBy = auth.ActorID(r.Context())
	}

	if err := s.orc.Renegotiate(r.Context(), r.PathValue("id"), req); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleReroute(w http.ResponseWriter, r *http.Request) {
	if err := s.orc.Reroute(r.Context(), r.PathValue("id"), auth.ActorID(r.Context())); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleAcceptProposal(w http.ResponseWriter, r *http.Request) {
	if err := s.orc.AcceptProposal(r.Context(), r.PathValue("id"), auth.ActorID(r.Context())); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if err := s.orc.Execute(r.Context(), r.PathValue("id"), auth.ActorID(r.Context())); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleRetryAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := s.orc.RetryAnalysis(r.Context(), r.PathValue("id")); err != nil {
		WriteFault(w, r, err)
		return
	}
	s.respondWithSession(w, r)
}

func (s *Server) handleTemplates(w http.ResponseWriter, r *http.Request) {
	types := s.library.Types()
	clauses := make(map[string]string, len(types))
	for _, ct := range types {
		if text, ok := s.library.SafeClause(ct); ok {
			clauses[string(ct)] = text
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clause_types": types,
		"safe_clauses": clauses,
	})
}

func (s *Server) handlePrecedents(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		p, ok := s.library.PrecedentByID(id)
		if !ok {
			WriteErrorR(w, r, http.StatusNotFound, "Not Found", "precedent "+id+" not found")
			return
		}
		writeJSON(w, http.StatusOK, p)
		return
	}

	if clause := r.URL.Query().Get("clause"); clause != "" {
		precedents := s.library.Precedents(contracts.ClauseType(clause))
		writeJSON(w, http.StatusOK, map[string]any{
			"clause_type": clause,
			"precedents":  precedents,
			"count":       len(precedents),
		})
		return
	}

	precedents := s.library.AllPrecedents()
	writeJSON(w, http.StatusOK, map[string]any{
		"precedents": precedents,
		"count":      len(precedents),
	})
}

// respondWithSession returns the post-command session snapshot.
func (s *Server) respondWithSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.orc.GetStatus(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteFault(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func afterSeq(raw string) (int64, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, &ProblemDetail{Title: "Bad Request", Detail: "after must be a non-negative integer"}
	}
	return n, nil
}
