package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"fetcharr/internal/config"
	"fetcharr/internal/logging"
	"fetcharr/internal/tracking"
)

// apiServer exposes a read-only JSON view of daemon state: status, queues,
// runs, and per-run dispatch records.
type apiServer struct {
	bind   string
	daemon *Daemon

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon) *apiServer {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil
	}

	srv := &apiServer{bind: bind, daemon: d}

	router := chi.NewRouter()
	router.Get("/api/status", srv.handleStatus)
	router.Get("/api/queues", srv.handleQueues)
	router.Get("/api/runs", srv.handleRuns)
	router.Get("/api/runs/{runID}", srv.handleRun)

	srv.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.daemon.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.daemon.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

type statusPayload struct {
	Running bool          `json:"running"`
	DBPath  string        `json:"db_path"`
	Queues  []QueueStatus `json:"queues"`
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.daemon.Status(r.Context())
	writeJSON(w, http.StatusOK, statusPayload{
		Running: status.Running,
		DBPath:  status.DBPath,
		Queues:  status.Queues,
	})
}

func (s *apiServer) handleQueues(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.daemon.scheduler.Status(r.Context()))
}

type runPayload struct {
	ID                   string     `json:"id"`
	Queue                string     `json:"queue"`
	Instance             string     `json:"instance"`
	Strategy             string     `json:"strategy"`
	Status               string     `json:"status"`
	StartedAt            time.Time  `json:"started_at"`
	FinishedAt           *time.Time `json:"finished_at,omitempty"`
	CandidatesConsidered int        `json:"candidates_considered"`
	SearchesDispatched   int        `json:"searches_dispatched"`
	Error                string     `json:"error,omitempty"`
}

func runToPayload(run *tracking.Run) runPayload {
	return runPayload{
		ID:                   run.ID,
		Queue:                run.QueueName,
		Instance:             run.Instance,
		Strategy:             string(run.Strategy),
		Status:               string(run.Status),
		StartedAt:            run.StartedAt,
		FinishedAt:           run.FinishedAt,
		CandidatesConsidered: run.CandidatesConsidered,
		SearchesDispatched:   run.SearchesDispatched,
		Error:                run.ErrorMessage,
	}
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 500 {
			writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 500")
			return
		}
		limit = parsed
	}

	runs, err := s.daemon.store.ListRuns(r.Context(), r.URL.Query().Get("queue"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]runPayload, 0, len(runs))
	for _, run := range runs {
		payload = append(payload, runToPayload(run))
	}
	writeJSON(w, http.StatusOK, payload)
}

type recordPayload struct {
	Seq       int     `json:"seq"`
	Label     string  `json:"label"`
	Action    string  `json:"action"`
	Score     float64 `json:"score"`
	Reason    string  `json:"reason"`
	CommandID *int64  `json:"command_id,omitempty"`
	Result    string  `json:"result"`
	Outcome   string  `json:"outcome"`
}

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	run, err := s.daemon.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	records, err := s.daemon.store.RecordsForRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	recordPayloads := make([]recordPayload, 0, len(records))
	for _, rec := range records {
		recordPayloads = append(recordPayloads, recordPayload{
			Seq:       rec.Seq,
			Label:     rec.Label,
			Action:    string(rec.Action),
			Score:     rec.Score,
			Reason:    rec.Reason,
			CommandID: rec.CommandID,
			Result:    string(rec.Result),
			Outcome:   string(rec.Outcome),
		})
	}

	writeJSON(w, http.StatusOK, struct {
		Run     runPayload      `json:"run"`
		Records []recordPayload `json:"records"`
	}{Run: runToPayload(run), Records: recordPayloads})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
