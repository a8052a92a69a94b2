package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"pmpm/internal/core"
	applog "pmpm/internal/log"
	"pmpm/internal/panel"
)

type healthResponse struct {
	Status string `json:"status"`
	Uptime string `json:"uptime"`
}

type panelsResponse struct {
	Panels []panel.Definition `json:"panels"`
}

type invalidateResponse struct {
	Invalidated string `json:"invalidated"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{
		Status: "ok",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady reports ready once the period domain can be read.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if _, err := s.dashboard.Periods(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
		render.Render(w, r, ErrServiceUnavailable)
		return
	}
	render.JSON(w, r, healthResponse{
		Status: "ready",
		Uptime: time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handlePeriods(w http.ResponseWriter, r *http.Request) {
	domain, err := s.dashboard.Periods(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, domain)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parser.ParseRange(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	view, err := s.dashboard.Summary(r.Context(), rng)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	rng, err := s.parser.ParseRange(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	view, err := s.dashboard.Breakdown(r.Context(), rng)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handlePanels(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, panelsResponse{Panels: s.dashboard.Panels()})
}

// panelLabel keeps metric labels to registered panel names.
func (s *Server) panelLabel(name string) string {
	for _, def := range s.dashboard.Panels() {
		if def.Name == name {
			return name
		}
	}
	return "unknown"
}

type panelRequest struct {
	rng     core.TimeRange
	filters map[string]string
}

// panelQuery parses the range and filters shared by panel and trend requests.
func (s *Server) panelQuery(r *http.Request, fn func(context.Context, panelRequest) (any, error)) (any, error) {
	rng, err := s.parser.ParseRange(r)
	if err != nil {
		return nil, err
	}
	filters, err := s.parser.ParseFilters(r)
	if err != nil {
		return nil, err
	}
	return fn(r.Context(), panelRequest{rng: rng, filters: filters})
}

func (s *Server) handlePanel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "panel")
	start := time.Now()

	view, err := s.panelQuery(r, func(ctx context.Context, q panelRequest) (any, error) {
		return s.dashboard.Panel(ctx, name, q.rng, q.filters)
	})
	s.metrics.ObserveRender(s.panelLabel(name), err, time.Since(start))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "panel")
	start := time.Now()

	view, err := s.panelQuery(r, func(ctx context.Context, q panelRequest) (any, error) {
		return s.dashboard.Trend(ctx, name, q.rng, q.filters)
	})
	s.metrics.ObserveRender(s.panelLabel(name), err, time.Since(start))
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	name, err := s.parser.ParseDataset(r)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if name == "" {
		s.dashboard.Purge()
		name = "all"
	} else {
		s.dashboard.Invalidate(name)
	}
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, invalidateResponse{Invalidated: name})
}
