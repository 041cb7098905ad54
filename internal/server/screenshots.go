package server

import (
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/resilience"
	"trade-journal/internal/screenshot"
)

// multipartMemory is the part of an upload kept in memory before spilling
// to a temp file.
const multipartMemory = 8 << 20

type captureRequest struct {
	TradeID int64  `json:"trade_id"`
	URL     string `json:"url"`
	Type    string `json:"type"`
}

type screenshotResponse struct {
	Success  bool   `json:"success"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

func viewURL(name string) string {
	return "/api/screenshots/view/" + name
}

// recordScreenshot stores name on the trade and writes the response.
func (s *Server) recordScreenshot(w http.ResponseWriter, r *http.Request, tradeID int64, kind models.ScreenshotKind, name, source string) {
	if err := s.journal.RecordScreenshot(r.Context(), userFrom(r).ID, tradeID, kind, name); err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.screenshots.WithLabelValues(source).Inc()
	render.JSON(w, r, screenshotResponse{Success: true, Filename: name, URL: viewURL(name)})
}

func (s *Server) captureURL(w http.ResponseWriter, r *http.Request) {
	var req captureRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TradeID == 0 || req.URL == "" {
		badRequest(w, r, "Missing trade_id or url")
		return
	}
	kind, err := screenshot.ParseKind(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Check ownership before launching a browser.
	if _, err := s.journal.GetTrade(r.Context(), userFrom(r).ID, req.TradeID); err != nil {
		writeError(w, r, err)
		return
	}

	name, err := s.shots.CaptureURL(r.Context(), req.URL, req.TradeID, kind)
	if err != nil {
		if jerrors.Is(err, jerrors.ErrInputValidation) {
			writeError(w, r, err)
			return
		}
		if jerrors.Is(err, resilience.ErrCircuitOpen) || jerrors.Is(err, resilience.ErrTooManyConcurrent) {
			writeJSON(w, r, http.StatusServiceUnavailable, errorBody{Error: "Screenshot capture temporarily unavailable"})
			return
		}
		requestLog(r).Error().Err(err).Int64("trade_id", req.TradeID).Msg("Screenshot capture failed")
		writeJSON(w, r, http.StatusInternalServerError, errorBody{Error: "Screenshot capture failed"})
		return
	}
	s.recordScreenshot(w, r, req.TradeID, kind, name, "capture")
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.MaxUploadMB) << 20
	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartMemory)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		badRequest(w, r, "No file provided")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "No file provided")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		badRequest(w, r, "No file selected")
		return
	}

	tradeID, err := strconv.ParseInt(r.FormValue("trade_id"), 10, 64)
	if err != nil || tradeID <= 0 {
		badRequest(w, r, "Missing trade_id")
		return
	}
	kind, err := screenshot.ParseKind(r.FormValue("type"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := s.journal.GetTrade(r.Context(), userFrom(r).ID, tradeID); err != nil {
		writeError(w, r, err)
		return
	}

	name, err := s.shots.Save(file, tradeID, kind, filepath.Ext(header.Filename), maxBytes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.recordScreenshot(w, r, tradeID, kind, name, "upload")
}

func (s *Server) viewScreenshot(w http.ResponseWriter, r *http.Request) {
	path, err := s.shots.Path(chi.URLParam(r, "filename"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.ServeFile(w, r, path)
}
