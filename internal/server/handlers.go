package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/manager"
	"github.com/swift-fca/swift/internal/websocket"
)

// browseRequest is a job plus the number of rows wanted
type browseRequest struct {
	manager.Job
	Count *int `json:"count,omitempty"`
}

// decodeJob reads a job from the body on top of the current profile
func (s *Server) decodeJob(r *http.Request, into interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return fcaerr.NewArgError("invalid job: %v", err)
	}
	return nil
}

// handleCreateJob starts a conversion on its own goroutine
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	jobCfg := manager.JobFromConfig(cfg)
	if err := s.decodeJob(r, &jobCfg); err != nil {
		writeError(w, err)
		return
	}
	if err := checkPaths(cfg.Server.AllowedDirs, jobCfg.Source.Path, jobCfg.Target.Path); err != nil {
		writeError(w, err)
		return
	}

	if !s.jobs.acquire() {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too many running jobs"})
		return
	}

	id := uuid.NewString()
	log := s.logger.WithJob(id)
	limiter := rate.NewLimiter(rate.Limit(cfg.Server.ProgressRate), 1)

	var converter *manager.Converter
	converter, err := manager.NewConverter(jobCfg,
		manager.WithLogger(log.Logger),
		manager.WithProgress(func(percent int) {
			if percent < 100 && !limiter.Allow() {
				return
			}
			stats := converter.Stats()
			s.wsHub.Broadcast(websocket.Event{
				Type:  websocket.EventTypeJobProgress,
				JobID: id,
				Data: websocket.JobProgressEvent{
					Percent:   percent,
					State:     stats.State.String(),
					Processed: stats.Processed,
					Written:   stats.Written,
				},
			})
		}),
	)
	if err != nil {
		s.jobs.release()
		writeError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	j := &job{
		ID:        id,
		Created:   time.Now(),
		converter: converter,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	s.jobs.add(j)

	s.wsHub.Broadcast(websocket.Event{
		Type:  websocket.EventTypeJobStarted,
		JobID: id,
		Data: websocket.JobStartedEvent{
			Source:       jobCfg.Source.Path,
			Target:       jobCfg.Target.Path,
			SourceFormat: jobCfg.Source.Format,
			TargetFormat: jobCfg.Target.Format,
		},
	})
	log.Info("Job started",
		zap.String("request_id", getRequestID(r.Context())),
		zap.String("source", jobCfg.Source.Path),
		zap.String("target", jobCfg.Target.Path))

	go s.runJob(ctx, j)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) runJob(ctx context.Context, j *job) {
	defer s.jobs.release()
	defer j.cancel()

	result, err := j.converter.Convert(ctx)
	j.finish(result, err)

	event := websocket.JobFinishedEvent{}
	if result != nil {
		event.State = result.State.String()
		event.Processed = result.Processed
		event.Written = result.Written
		event.Skipped = result.Skipped
		event.Failed = result.Failed
		event.DurationMS = float64(result.Duration.Microseconds()) / 1000
	}
	if err != nil {
		event.Error = err.Error()
		event.Code = int(fcaerr.CodeOf(err))
	}
	s.wsHub.Broadcast(websocket.Event{Type: websocket.EventTypeJobFinished, JobID: j.ID, Data: event})

	log := s.logger.WithJob(j.ID)
	if err != nil {
		log.Error("Job failed", zap.Error(err))
		return
	}
	log.Info("Job finished", zap.String("state", event.State), zap.Int("written", event.Written))
}

// handleListJobs reports every known job
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobs.list()
	out := make([]Status, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.status())
	}
	writeJSON(w, http.StatusOK, out)
}

// handleGetJob reports state, counters and recorded errors of one job
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, j.status())
}

// handleStopJob asks a job to stop after its current line
func (s *Server) handleStopJob(w http.ResponseWriter, r *http.Request) {
	j, ok := s.jobs.get(mux.Vars(r)["id"])
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	j.converter.Stop()
	s.logger.WithJob(j.ID).Info("Job stop requested")
	writeJSON(w, http.StatusAccepted, j.status())
}

// handleBrowse returns the header and the first rows of a source
func (s *Server) handleBrowse(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	req := browseRequest{Job: manager.JobFromConfig(cfg)}
	if err := s.decodeJob(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := checkPaths(cfg.Server.AllowedDirs, req.Source.Path); err != nil {
		writeError(w, err)
		return
	}
	count := cfg.Options.BrowseCount
	if req.Count != nil {
		count = *req.Count
	}

	b, err := manager.NewBrowser(req.Job, manager.WithLogger(s.logger.Logger))
	if err != nil {
		writeError(w, err)
		return
	}
	defer b.Close()

	if err := b.ReadInfo(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	rows, err := b.Next(r.Context(), count)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = [][]string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"header": b.Header(),
		"rows":   rows,
		"errors": b.Errors(),
	})
}

// handleExport returns the statistics report of a source as text
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	cfg := s.currentConfig()
	jobCfg := manager.JobFromConfig(cfg)
	if err := s.decodeJob(r, &jobCfg); err != nil {
		writeError(w, err)
		return
	}
	if err := checkPaths(cfg.Server.AllowedDirs, jobCfg.Source.Path); err != nil {
		writeError(w, err)
		return
	}

	e, err := manager.NewExporter(jobCfg, manager.WithLogger(s.logger.Logger))
	if err != nil {
		writeError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := e.Export(r.Context(), &buf); err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps an error to its HTTP status and error code
func writeError(w http.ResponseWriter, err error) {
	code := fcaerr.CodeOf(err)
	status := http.StatusUnprocessableEntity
	var argErr *fcaerr.ArgError
	switch {
	case errors.Is(err, errForbiddenPath):
		status = http.StatusForbidden
	case errors.As(err, &argErr):
		status = http.StatusBadRequest
	case errors.Is(err, fs.ErrNotExist):
		status = http.StatusNotFound
	case code == fcaerr.CodeInterrupted:
		status = http.StatusRequestTimeout
	case code == fcaerr.CodeUnknown:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
		"code":  code,
	})
}
