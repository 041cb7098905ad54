package server

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"trade-journal/internal/analytics"
	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/export"
)

func yearMonth(r *http.Request) (int, time.Month, error) {
	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		return 0, 0, jerrors.NewValidationError("year", chi.URLParam(r, "year"), "must be a number")
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil {
		return 0, 0, jerrors.NewValidationError("month", chi.URLParam(r, "month"), "must be a number")
	}
	return year, time.Month(month), nil
}

func (s *Server) overall(w http.ResponseWriter, r *http.Request) {
	summary, err := s.journal.Summary(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, summary)
}

func (s *Server) daily(w http.ResponseWriter, r *http.Request) {
	days, err := strconv.Atoi(chi.URLParam(r, "days"))
	if err != nil {
		writeError(w, r, jerrors.NewValidationError("days", chi.URLParam(r, "days"), "must be a number"))
		return
	}
	stats, err := s.journal.Daily(r.Context(), userFrom(r).ID, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []analytics.DailyStats{}
	}
	render.JSON(w, r, stats)
}

func (s *Server) bySession(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.BySession(r.Context(), userFrom(r).ID)
	s.renderGroups(w, r, stats, err)
}

func (s *Server) bySetup(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.BySetup(r.Context(), userFrom(r).ID)
	s.renderGroups(w, r, stats, err)
}

func (s *Server) renderGroups(w http.ResponseWriter, r *http.Request, stats []analytics.GroupStats, err error) {
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []analytics.GroupStats{}
	}
	render.JSON(w, r, stats)
}

func (s *Server) mistakes(w http.ResponseWriter, r *http.Request) {
	stats, err := s.journal.Mistakes(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if stats == nil {
		stats = []analytics.TagFrequency{}
	}
	render.JSON(w, r, stats)
}

func (s *Server) equity(w http.ResponseWriter, r *http.Request) {
	curve, err := s.journal.EquityCurve(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, curve)
}

func (s *Server) equityChart(w http.ResponseWriter, r *http.Request) {
	curve, err := s.journal.EquityCurve(r.Context(), userFrom(r).ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.RenderEquityChart(&buf, curve, "Equity Curve"); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) monthly(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.journal.Monthly(r.Context(), userFrom(r).ID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, report)
}
