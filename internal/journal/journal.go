// Package journal is the application service of the trading journal. It
// validates input, derives the planned risk of new trades, closes trades,
// manages tags and users, and feeds user-scoped snapshots from the store into
// the analytics engine.
package journal

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/logging"
	"trade-journal/internal/models"
	"trade-journal/internal/security"
	"trade-journal/internal/store"
)

// Service implements the journal use cases over a JournalStore.
type Service struct {
	store           store.JournalStore
	validate        *validator.Validate
	auditor         security.Auditor
	access          *security.AccessController
	logger          zerolog.Logger
	now             func() time.Time
	defaultTagColor string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithAuditor records every mutation through a.
func WithAuditor(a security.Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

// WithAccessController enforces read-only mode on mutations.
func WithAccessController(ac *security.AccessController) Option {
	return func(s *Service) { s.access = ac }
}

// WithClock replaces time.Now. Tests use it to pin report windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithDefaultTagColor sets the color given to tags created without one.
func WithDefaultTagColor(color string) Option {
	return func(s *Service) {
		if color != "" {
			s.defaultTagColor = color
		}
	}
}

// NewService creates a journal service.
func NewService(st store.JournalStore, opts ...Option) *Service {
	s := &Service{
		store:           st,
		validate:        newValidator(),
		logger:          zerolog.Nop(),
		now:             time.Now,
		defaultTagColor: models.DefaultTagColor,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying store.
func (s *Service) Store() store.JournalStore {
	return s.store
}

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("session", func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, s := range models.Sessions {
			if string(s) == val {
				return true
			}
		}
		return false
	})
	v.RegisterValidation("pair", func(fl validator.FieldLevel) bool {
		return security.ValidPair(security.SanitizePair(fl.Field().String()))
	})
	v.RegisterValidation("hexcolor6", func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		return val == "" || (len(val) == 7 && val[0] == '#' && isHex(val[1:]))
	})

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func isHex(s string) bool {
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}

// validateStruct runs struct validation and converts the first failure into
// a ValidationError.
func (s *Service) validateStruct(v interface{}) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		return jerrors.NewValidationError(fe.Field(), fe.Value(), describe(fe))
	}
	return jerrors.Wrap(jerrors.ErrInputValidation, err.Error())
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	case "session":
		return "must be Asian, London or New York"
	case "pair":
		return "is not a valid instrument"
	case "hexcolor6":
		return "must be a #rrggbb color"
	case "email":
		return "must be a valid email address"
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

// authorize checks read-only mode before a mutation.
func (s *Service) authorize(ctx context.Context, op security.OperationType) error {
	return s.access.CheckPermission(ctx, op)
}

// audit records a successful mutation. Audit failures are logged, never
// returned: the mutation has already happened.
func (s *Service) audit(ctx context.Context, event security.AuditEvent) {
	if s.auditor == nil {
		return
	}
	event.Success = true
	if err := s.auditor.Log(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("event_type", string(event.EventType)).Msg("Failed to write audit event")
	}
}

// log returns the request logger if one is in ctx, else the service logger.
func (s *Service) log(ctx context.Context) zerolog.Logger {
	if l := logging.FromContext(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return s.logger
}
