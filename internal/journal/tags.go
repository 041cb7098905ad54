package journal

import (
	"context"
	"strings"

	"trade-journal/internal/models"
	"trade-journal/internal/security"
)

// NewTag is the input for creating a mistake tag.
type NewTag struct {
	Name  string `json:"name" validate:"required,max=50"`
	Color string `json:"color,omitempty" validate:"hexcolor6"`
}

// ListTags returns every tag ordered by name.
func (s *Service) ListTags(ctx context.Context) ([]models.Tag, error) {
	return s.store.ListTags(ctx)
}

// CreateTag creates a tag. A missing color falls back to the configured
// default.
func (s *Service) CreateTag(ctx context.Context, userID int64, in NewTag) (*models.Tag, error) {
	if err := s.authorize(ctx, security.OpCreateTag); err != nil {
		return nil, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	tag := &models.Tag{Name: in.Name, Color: in.Color}
	if tag.Color == "" {
		tag.Color = s.defaultTagColor
	}
	if err := s.store.CreateTag(ctx, tag); err != nil {
		return nil, err
	}

	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditTagCreated,
		UserID:    userID,
		Details:   map[string]interface{}{"name": tag.Name, "color": tag.Color},
	})
	return tag, nil
}

// TradeTags returns the tags attached to one of the user's trades.
func (s *Service) TradeTags(ctx context.Context, userID, tradeID int64) ([]models.Tag, error) {
	return s.store.TradeTags(ctx, userID, tradeID)
}

// AttachTag attaches a tag to one of the user's trades.
func (s *Service) AttachTag(ctx context.Context, userID, tradeID, tagID int64) error {
	if err := s.authorize(ctx, security.OpTagTrade); err != nil {
		return err
	}
	if err := s.store.AttachTag(ctx, userID, tradeID, tagID); err != nil {
		return err
	}
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditTagAttached,
		UserID:    userID,
		TradeID:   tradeID,
		Details:   map[string]interface{}{"tag_id": tagID},
	})
	return nil
}

// DetachTag removes a tag from one of the user's trades.
func (s *Service) DetachTag(ctx context.Context, userID, tradeID, tagID int64) error {
	if err := s.authorize(ctx, security.OpTagTrade); err != nil {
		return err
	}
	if err := s.store.DetachTag(ctx, userID, tradeID, tagID); err != nil {
		return err
	}
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditTagDetached,
		UserID:    userID,
		TradeID:   tradeID,
		Details:   map[string]interface{}{"tag_id": tagID},
	})
	return nil
}
