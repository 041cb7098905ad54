package journal

import (
	"context"
	"strings"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/security"
)

// NewUser is the input for registering an account.
type NewUser struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	FullName string `json:"full_name" validate:"max=100"`
}

// RegisterUser creates an account with a hashed password.
func (s *Service) RegisterUser(ctx context.Context, in NewUser) (*models.User, error) {
	if err := s.authorize(ctx, security.OpCreateUser); err != nil {
		return nil, err
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := s.validateStruct(in); err != nil {
		return nil, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.FullName),
		Plan:         models.PlanFree,
		IsActive:     true,
		CreatedAt:    s.now(),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("user_id", user.ID).Str("email", security.MaskEmail(user.Email)).Msg("User created")
	s.audit(ctx, security.AuditEvent{EventType: security.AuditUserCreated, UserID: user.ID})
	return user, nil
}

// Authenticate checks an email and password and records the login. Unknown
// emails, inactive accounts and wrong passwords all return
// ErrInvalidCredentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.store.GetUserByEmail(ctx, email)
	if jerrors.Is(err, jerrors.ErrUserNotFound) {
		s.auditLogin(ctx, 0, email, false)
		return nil, jerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.IsActive || !security.CheckPassword(user.PasswordHash, password) {
		s.auditLogin(ctx, user.ID, email, false)
		return nil, jerrors.ErrInvalidCredentials
	}

	if err := s.store.TouchLogin(ctx, user.ID, s.now()); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", user.ID).Msg("Failed to record login")
	}
	s.auditLogin(ctx, user.ID, email, true)
	return user, nil
}

func (s *Service) auditLogin(ctx context.Context, userID int64, email string, success bool) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Log(ctx, security.LoginEvent(userID, email, success)); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to write audit event")
	}
}

// CleanSampleData deletes every trade of the user and returns the count.
func (s *Service) CleanSampleData(ctx context.Context, userID int64) (int64, error) {
	if err := s.authorize(ctx, security.OpClearData); err != nil {
		return 0, err
	}
	n, err := s.store.DeleteUserTrades(ctx, userID)
	if err != nil {
		return 0, err
	}
	s.logger.Info().Int64("user_id", userID).Int64("deleted", n).Msg("Trades cleared")
	s.audit(ctx, security.AuditEvent{
		EventType: security.AuditDataCleared,
		UserID:    userID,
		Details:   map[string]interface{}{"deleted": n},
	})
	return n, nil
}
