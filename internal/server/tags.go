package server

import (
	"net/http"

	"github.com/go-chi/render"

	"trade-journal/internal/journal"
	"trade-journal/internal/models"
)

type tagRequest struct {
	TagID *int64 `json:"tag_id"`
}

type createTagResponse struct {
	Success bool  `json:"success"`
	TagID   int64 `json:"tag_id"`
}

func (s *Server) listTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.journal.ListTags(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	render.JSON(w, r, tags)
}

func (s *Server) createTag(w http.ResponseWriter, r *http.Request) {
	var in journal.NewTag
	if err := decode(r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	tag, err := s.journal.CreateTag(r.Context(), userFrom(r).ID, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, createTagResponse{Success: true, TagID: tag.ID})
}

func (s *Server) tradeTags(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	tags, err := s.journal.TradeTags(r.Context(), userFrom(r).ID, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.Tag{}
	}
	render.JSON(w, r, tags)
}

// tagAction decodes {tag_id} for the add and remove routes.
func (s *Server) tagAction(w http.ResponseWriter, r *http.Request, apply func(userID, tradeID, tagID int64) error) {
	tradeID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req tagRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.TagID == nil {
		badRequest(w, r, "tag_id is required")
		return
	}
	if err := apply(userFrom(r).ID, tradeID, *req.TagID); err != nil {
		writeError(w, r, err)
		return
	}
	render.JSON(w, r, successBody{Success: true})
}

func (s *Server) attachTag(w http.ResponseWriter, r *http.Request) {
	s.tagAction(w, r, func(userID, tradeID, tagID int64) error {
		return s.journal.AttachTag(r.Context(), userID, tradeID, tagID)
	})
}

func (s *Server) detachTag(w http.ResponseWriter, r *http.Request) {
	s.tagAction(w, r, func(userID, tradeID, tagID int64) error {
		return s.journal.DetachTag(r.Context(), userID, tradeID, tagID)
	})
}
