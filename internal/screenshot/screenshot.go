// Package screenshot stores chart screenshots attached to trades. Charts are
// captured from a URL with headless Chrome or uploaded as image files.
package screenshot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	jerrors "trade-journal/internal/errors"
	"trade-journal/internal/models"
	"trade-journal/internal/resilience"
)

const stampLayout = "20060102_150405"

// AllowedExtensions are the accepted upload file types.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "webp"}

// CaptureFunc renders url and returns PNG bytes.
type CaptureFunc func(ctx context.Context, url string) ([]byte, error)

// Service writes screenshots into Dir.
type Service struct {
	Dir            string
	ViewportWidth  int
	ViewportHeight int
	// Wait is the time given to a page's charts to render before capture.
	Wait    time.Duration
	Timeout time.Duration

	capture CaptureFunc
	breaker *resilience.Breaker
	retry   resilience.RetryPolicy
	logger  zerolog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithCapture replaces the headless Chrome capture.
func WithCapture(fn CaptureFunc) Option {
	return func(s *Service) { s.capture = fn }
}

// WithBreaker replaces the capture circuit breaker.
func WithBreaker(b *resilience.Breaker) Option {
	return func(s *Service) { s.breaker = b }
}

// WithRetry sets the retry policy for failed captures.
func WithRetry(p resilience.RetryPolicy) Option {
	return func(s *Service) { s.retry = p }
}

// WithClock replaces time.Now for file names.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a screenshot service with a 1920x1080 viewport, a 3s
// render wait and a 30s timeout. Captures retry once and go through a
// circuit breaker so a broken Chrome install fails fast.
func NewService(dir string, opts ...Option) *Service {
	s := &Service{
		Dir:            dir,
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		Wait:           3 * time.Second,
		Timeout:        30 * time.Second,
		retry:          resilience.DefaultRetryPolicy(),
		logger:         zerolog.Nop(),
		now:            time.Now,
	}
	s.capture = s.chromeCapture
	s.breaker = resilience.NewBreaker("screenshot_capture", resilience.DefaultBreakerConfig())
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FileName returns the stored name of a screenshot.
func FileName(tradeID int64, kind models.ScreenshotKind, at time.Time, ext string) string {
	return fmt.Sprintf("trade_%d_%s_%s.%s", tradeID, kind, at.Format(stampLayout), ext)
}

// ParseKind validates a screenshot kind. An empty kind means before.
func ParseKind(kind string) (models.ScreenshotKind, error) {
	if kind == "" {
		return models.ScreenshotBefore, nil
	}
	k := models.ScreenshotKind(strings.ToLower(kind))
	if !k.Valid() {
		return "", jerrors.NewValidationError("type", kind, "must be before or after")
	}
	return k, nil
}

// NormalizeExtension lower-cases ext, strips a leading dot and checks it
// against AllowedExtensions.
func NormalizeExtension(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", jerrors.NewValidationError("file", ext, "must be a png, jpg, jpeg, gif or webp image")
}

// CaptureURL captures the visible viewport of url and stores it as a PNG.
// It returns the stored file name.
func (s *Service) CaptureURL(ctx context.Context, url string, tradeID int64, kind models.ScreenshotKind) (string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "", jerrors.NewValidationError("url", url, "must be an http or https URL")
	}

	start := time.Now()
	png, err := resilience.Do(ctx, s.breaker, func(ctx context.Context) ([]byte, error) {
		var png []byte
		err := resilience.Retry(ctx, s.retry, func(ctx context.Context) error {
			var err error
			png, err = s.capture(ctx, url)
			return err
		})
		return png, err
	})
	if err != nil {
		s.logger.Error().Err(err).Str("url", url).Int64("trade_id", tradeID).Msg("Screenshot capture failed")
		return "", fmt.Errorf("failed to capture %s: %w", url, err)
	}

	name := FileName(tradeID, kind, s.now(), "png")
	if err := s.write(name, bytes.NewReader(png), -1); err != nil {
		return "", err
	}
	s.logger.Info().
		Str("file", name).
		Int64("trade_id", tradeID).
		Dur("duration", time.Since(start)).
		Msg("Screenshot captured")
	return name, nil
}

// Breaker returns the capture circuit breaker.
func (s *Service) Breaker() *resilience.Breaker {
	return s.breaker
}

func (s *Service) chromeCapture(ctx context.Context, url string) ([]byte, error) {
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, s.Timeout)
	defer cancelTimeout()

	var png []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(s.ViewportWidth), int64(s.ViewportHeight)),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.Wait),
		chromedp.CaptureScreenshot(&png),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return png, nil
}

// Save stores an uploaded image and returns the stored file name. At most
// maxBytes are accepted; maxBytes <= 0 means no limit.
func (s *Service) Save(r io.Reader, tradeID int64, kind models.ScreenshotKind, ext string, maxBytes int64) (string, error) {
	ext, err := NormalizeExtension(ext)
	if err != nil {
		return "", err
	}
	name := FileName(tradeID, kind, s.now(), ext)
	if err := s.write(name, r, maxBytes); err != nil {
		return "", err
	}
	s.logger.Info().Str("file", name).Int64("trade_id", tradeID).Msg("Screenshot uploaded")
	return name, nil
}

func (s *Service) write(name string, r io.Reader, maxBytes int64) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", name, err)
	}

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && maxBytes > 0 && n > maxBytes {
		err = jerrors.NewValidationError("file", n, fmt.Sprintf("must be at most %d bytes", maxBytes))
	}
	if err != nil {
		os.Remove(path)
		return err
	}
	return nil
}

// Path resolves a stored file name inside Dir. Names with path components
// are rejected.
func (s *Service) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", jerrors.NewValidationError("filename", name, "must be a plain file name")
	}
	path := filepath.Join(s.Dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", jerrors.Wrapf(jerrors.ErrDataNotFound, "screenshot %s", name)
		}
		return "", fmt.Errorf("failed to stat screenshot: %w", err)
	}
	return path, nil
}
