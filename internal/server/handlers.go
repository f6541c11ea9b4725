package server

import (
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/artifact"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/storage"
)

type trialQuery struct {
	Artifact bool `form:"artifact"`
}

type runsQuery struct {
	Trial string `form:"trial"`
}

type eventsQuery struct {
	Leg           string   `form:"leg"`
	Type          string   `form:"type"`
	MinConfidence float64  `form:"min_confidence"`
	From          *float64 `form:"from"`
	To            *float64 `form:"to"`
}

// TrialDetails is the payload of GET /api/v1/trials/:id.
type TrialDetails struct {
	*storage.Trial
	Artifact *artifact.Document `json:"artifact,omitempty"`
}

// AnnotationSummary is returned after an annotation set is stored.
type AnnotationSummary struct {
	TrialID     string `json:"trial_id"`
	TotalEvents int    `json:"total_events"`
	Annotator   string `json:"annotator,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"status": "ok"})
}

// listTrials handles GET /api/v1/trials
func (s *Server) listTrials(c *gin.Context) {
	trials, err := s.store.Trials(c.Request.Context())
	if err != nil {
		internalError(c, "failed to list trials", err)
		return
	}
	if trials == nil {
		trials = []*storage.Trial{}
	}
	success(c, http.StatusOK, trials)
}

// getTrial handles GET /api/v1/trials/:id
func (s *Server) getTrial(c *gin.Context) {
	var q trialQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters", err)
		return
	}

	trial, err := s.store.Trial(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "trial not found")
		return
	}
	if err != nil {
		internalError(c, "failed to get trial", err)
		return
	}

	details := TrialDetails{Trial: trial}
	if q.Artifact {
		if trial.ArtifactPath == "" {
			notFound(c, "trial has no artifact")
			return
		}
		if details.Artifact, err = artifact.ReadDocument(trial.ArtifactPath); err != nil {
			internalError(c, "failed to read artifact", err)
			return
		}
	}
	success(c, http.StatusOK, details)
}

// getAnnotations handles GET /api/v1/annotations/:id
func (s *Server) getAnnotations(c *gin.Context) {
	set, err := artifact.LoadAnnotations(s.annotationsDir, c.Param("id"))
	if errors.Is(err, artifact.ErrNoAnnotations) {
		notFound(c, "no annotations for trial")
		return
	}
	if err != nil {
		internalError(c, "failed to load annotations", err)
		return
	}
	success(c, http.StatusOK, set)
}

// postAnnotations handles POST /api/v1/annotations/:id
func (s *Server) postAnnotations(c *gin.Context) {
	trialID := c.Param("id")

	var set artifact.AnnotationSet
	if err := c.ShouldBindJSON(&set); err != nil {
		badRequest(c, "invalid annotation set", err)
		return
	}
	if err := set.Validate(trialID); err != nil {
		badRequest(c, err.Error(), err)
		return
	}

	now := s.now().UTC()
	if set.TrialInfo.Annotator == "" {
		set.TrialInfo.Annotator = c.GetString(annotatorKey)
	}
	if set.TrialInfo.AnnotationDate.IsZero() {
		set.TrialInfo.AnnotationDate = now
	}
	for i := range set.Events {
		if set.Events[i].Timestamp.IsZero() {
			set.Events[i].Timestamp = now
		}
	}

	if err := artifact.SaveAnnotations(s.annotationsDir, trialID, &set); err != nil {
		internalError(c, "failed to save annotations", err)
		return
	}

	s.logger.Info("annotations saved",
		slog.String("trial", trialID),
		slog.Int("events", len(set.Events)),
		slog.String("annotator", set.TrialInfo.Annotator),
	)
	success(c, http.StatusCreated, AnnotationSummary{
		TrialID:     trialID,
		TotalEvents: set.TrialInfo.TotalEvents,
		Annotator:   set.TrialInfo.Annotator,
	})
}

// listRuns handles GET /api/v1/runs
func (s *Server) listRuns(c *gin.Context) {
	var q runsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters", err)
		return
	}

	runs, err := s.store.Runs(c.Request.Context(), q.Trial)
	if err != nil {
		internalError(c, "failed to list runs", err)
		return
	}
	if runs == nil {
		runs = []*storage.Run{}
	}
	success(c, http.StatusOK, runs)
}

// getRun handles GET /api/v1/runs/:id
func (s *Server) getRun(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid run ID", err)
		return
	}

	run, err := s.store.Run(c.Request.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "run not found")
		return
	}
	if err != nil {
		internalError(c, "failed to get run", err)
		return
	}
	success(c, http.StatusOK, run)
}

// listEvents handles GET /api/v1/runs/:id/events
func (s *Server) listEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid run ID", err)
		return
	}

	var q eventsQuery
	if err = c.ShouldBindQuery(&q); err != nil {
		badRequest(c, "invalid query parameters", err)
		return
	}

	opts, err := q.options()
	if err != nil {
		badRequest(c, err.Error(), err)
		return
	}

	r, err := s.store.ReadEvents(c.Request.Context(), id, opts...)
	if errors.Is(err, storage.ErrNotFound) {
		notFound(c, "run not found")
		return
	}
	if err != nil {
		internalError(c, "failed to read events", err)
		return
	}

	events, err := storage.ReadAll(c.Request.Context(), r)
	if err != nil {
		internalError(c, "failed to read events", err)
		return
	}
	if events == nil {
		events = []gait.Event{}
	}
	success(c, http.StatusOK, events)
}

func (q eventsQuery) options() ([]storage.ReaderOption, error) {
	var opts []storage.ReaderOption
	if q.Leg != "" {
		leg := gait.Leg(q.Leg)
		if !leg.Valid() {
			return nil, errors.New("leg must be left or right")
		}
		opts = append(opts, storage.WithLeg(leg))
	}
	if q.Type != "" {
		typ := gait.EventType(q.Type)
		if !typ.Valid() {
			return nil, errors.New("type must be heel_strike or toe_off")
		}
		opts = append(opts, storage.WithEventType(typ))
	}
	if q.MinConfidence > 0 {
		opts = append(opts, storage.WithMinConfidence(q.MinConfidence))
	}
	if q.From != nil || q.To != nil {
		from, to := -math.MaxFloat64, math.MaxFloat64
		if q.From != nil {
			from = *q.From
		}
		if q.To != nil {
			to = *q.To
		}
		if from > to {
			return nil, errors.New("from must not be after to")
		}
		opts = append(opts, storage.WithTimeRange(from, to))
	}
	return opts, nil
}
