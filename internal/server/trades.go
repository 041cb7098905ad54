package server

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/shopspring/decimal"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/export"
	"trade-journal/internal/journal"
	"trade-journal/internal/models"
)

// pathID parses a numeric URL parameter. Routes constrain the pattern to
// digits, so only overflow can fail here.
func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		return 0, jerrors.NewValidationError(name, chi.URLParam(r, name), "must be a number")
	}
	return id, nil
}

func decode(r *http.Request, v interface{}) error {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return jerrors.NewValidationError("body", nil, "must be valid JSON: "+err.Error())
	}
	return nil
}

type createTradeResponse struct {
	Success bool   `json:"success"`
	TradeID int64  `json:"trade_id"`
	Message string `json:"message"`
}

type closeTradeRequest struct {
	ExitPrice *float64   `json:"exit_price"`
	ExitTime  *time.Time `json:"exit_time,omitempty"`
}

type closeTradeResponse struct {
	Success    bool    `json:"success"`
	ProfitLoss float64 `json:"profit_loss"`
}

func (s *Server) listTrades(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	status := models.TradeStatus(r.URL.Query().Get("status"))
	if status != "" && status != models.StatusOpen && status != models.StatusClosed {
		badRequest(w, r, "status must be open or closed")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			badRequest(w, r, "limit must be a non-negative number")
			return
		}
		limit = n
	}

	trades, err := s.journal.ListTrades(r.Context(), user.ID, status, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if trades == nil {
		trades = []models.Trade{}
	}
	render.JSON(w, r, trades)
}

func (s *Server) getTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	trade, err := s.journal.GetTrade(r.Context(), userFrom(r).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, trade)
}

func (s *Server) createTrade(w http.ResponseWriter, r *http.Request) {
	var in journal.NewTrade
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	trade, err := s.journal.CreateTrade(r.Context(), userFrom(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.tradesOpened.Inc()
	writeJSON(w, r, http.StatusCreated, createTradeResponse{
		Success: true,
		TradeID: trade.ID,
		Message: "Trade created successfully",
	})
}

func (s *Server) closeTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req closeTradeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.ExitPrice == nil {
		badRequest(w, r, "exit_price is required")
		return
	}
	var exitTime time.Time
	if req.ExitTime != nil {
		exitTime = *req.ExitTime
	}

	pnl, err := s.journal.CloseTrade(r.Context(), userFrom(r).ID, id, *req.ExitPrice, exitTime)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.metrics.tradesClosed.Inc()
	rounded, _ := decimal.NewFromFloat(pnl).Round(2).Float64()
	render.JSON(w, r, closeTradeResponse{Success: true, ProfitLoss: rounded})
}

func (s *Server) deleteTrade(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.journal.DeleteTrade(r.Context(), userFrom(r).ID, id); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, successBody{Success: true})
}

func (s *Server) exportCSV(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	trades, err := s.journal.ListTrades(r.Context(), user.ID, "", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, trades); err != nil {
		if jerrors.Is(err, jerrors.ErrDataNotFound) {
			writeJSON(w, r, http.StatusNotFound, errorBody{Error: "No trades to export"})
			return
		}
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename="+export.CSVFileName(user.Email))
	w.Write(buf.Bytes())
}

func (s *Server) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	year, month, err := yearMonth(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := userFrom(r)
	report, err := s.journal.Monthly(r.Context(), user.ID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	trades, err := s.journal.MonthTrades(r.Context(), user.ID, year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteMonthlyWorkbook(&buf, report, trades); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename=journal_"+report.Month+".xlsx")
	w.Write(buf.Bytes())
}
