// Package domain implements the collab lifecycle: posts, help offers,
// ratings, conversations and unread badges.
package domain

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/finalProject2025/TP-sub000/internal/platform/errors"
	"github.com/finalProject2025/TP-sub000/internal/platform/id"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/postalcode"
	"github.com/finalProject2025/TP-sub000/internal/services/collab/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrStoreNotConfigured indicates the service is missing persistence wiring.
var ErrStoreNotConfigured = errors.New("collab store is not configured")

const (
	// PostLifetime is the time a post stays open before the sweep closes it.
	PostLifetime = 72 * time.Hour

	defaultPageSize = 50
	maxPageSize     = 200

	maxTitleRunes       = 200
	maxDescriptionRunes = 2000
	maxTextRunes        = 1000
)

// PostalCodeCipher encrypts postal codes for storage and reveals stored values.
type PostalCodeCipher interface {
	Encrypt(plaintext string) (string, error)
	Reveal(stored string) postalcode.PostalCode
}

// Service orchestrates the collab lifecycle on top of a Store.
type Service struct {
	store        storage.Store
	cipher       PostalCodeCipher
	clock        func() time.Time
	newID        func() (string, error)
	newMessageID func() (string, error)
	logger       *zap.Logger
	tracer       trace.Tracer
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithIDGenerator overrides the generator for post, offer and rating ids.
func WithIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newID = newID
		}
	}
}

// WithMessageIDGenerator overrides the generator for message ids.
func WithMessageIDGenerator(newID func() (string, error)) Option {
	return func(s *Service) {
		if newID != nil {
			s.newMessageID = newID
		}
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService constructs collab use-cases.
func NewService(store storage.Store, cipher PostalCodeCipher, opts ...Option) *Service {
	s := &Service{
		store:        store,
		cipher:       cipher,
		clock:        time.Now,
		newID:        id.NewID,
		newMessageID: id.NewSortableID,
		logger:       zap.NewNop(),
		tracer:       otel.Tracer("collab"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) nowUTC() time.Time {
	return s.clock().UTC()
}

// generateID wraps generator failures as a transient error.
func generateID(newID func() (string, error), what string) (string, error) {
	value, err := newID()
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeIDGenerationUnavailable, "generate "+what+" id", err)
	}
	return value, nil
}

func (s *Service) ready() error {
	if s == nil || s.store == nil {
		return ErrStoreNotConfigured
	}
	return nil
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "collab."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, apperrors.CodeOf(err).Kind().String())
	}
	span.End()
}

// storageError maps store failures to collab errors. Kinds already attached
// and context errors pass through unchanged.
func storageError(err error, notFound apperrors.Code, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := apperrors.As(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, storage.ErrNotFound) && notFound != "" {
		return apperrors.Wrap(notFound, message, err)
	}
	return apperrors.Wrap(apperrors.CodeStorageUnavailable, message, err)
}

func requireUserID(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", apperrors.New(apperrors.CodeUserIDEmpty, "user id is required")
	}
	return userID, nil
}

func runeLen(value string) int {
	return utf8.RuneCountInString(value)
}

func meta(pairs ...string) map[string]string {
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out[pairs[i]] = pairs[i+1]
	}
	return out
}
