package server

import (
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"trade-journal/internal/journal"
	"trade-journal/internal/models"
	"trade-journal/internal/resilience"
)

// SampleTradeCount is the number of demo trades added per request.
const SampleTradeCount = 10

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type registerResponse struct {
	Success bool  `json:"success"`
	UserID  int64 `json:"user_id"`
}

type userResponse struct {
	ID       int64       `json:"id"`
	Email    string      `json:"email"`
	FullName string      `json:"full_name"`
	Plan     models.Plan `json:"plan"`
}

func (s *Server) alive(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "ok", Message: HealthMessage})
}

// ready runs the component checks. An unhealthy component answers 503.
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status == resilience.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, r, status, report)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in journal.NewUser
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.journal.RegisterUser(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, registerResponse{Success: true, UserID: user.ID})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r)
	render.JSON(w, r, userResponse{ID: u.ID, Email: u.Email, FullName: u.FullName, Plan: u.Plan})
}

func (s *Server) addSampleData(w http.ResponseWriter, r *http.Request) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	n, err := s.journal.AddSampleTrades(r.Context(), userFrom(r).ID, SampleTradeCount, rng)
	if err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, successBody{Success: true, Message: fmt.Sprintf("Added %d sample trades", n)})
}
