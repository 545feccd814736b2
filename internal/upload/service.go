// Package upload stores "Your Window" photos after checking their type and
// screening their content.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/yourview/yourview/internal/apperr"
	"github.com/yourview/yourview/internal/checksum"
	"github.com/yourview/yourview/internal/ledger"
	"github.com/yourview/yourview/internal/media"
	"github.com/yourview/yourview/internal/models"
	"github.com/yourview/yourview/internal/moderation"
	"github.com/yourview/yourview/internal/storage"
)

const (
	// DefaultFolder is the key prefix used when none is given.
	DefaultFolder = "YourWindow"
	// DefaultMaxSize is the largest accepted upload.
	DefaultMaxSize = 10 << 20

	ModerationPassed  = "passed"
	ModerationSkipped = "skipped"
)

// Receipt describes a stored upload.
type Receipt struct {
	Key         string `json:"key"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
	ETag        string `json:"etag"`
	URL         string `json:"url"`
	Moderation  string `json:"moderation"`
}

// Notifier is told about stored uploads.
type Notifier interface {
	PublishUploadEvent(kind, key string)
}

// Service runs the upload pipeline: size check, type sniffing, moderation,
// storage, ledger, notification.
type Service struct {
	store     storage.Provider
	ledger    ledger.Store
	moderator moderation.Checker
	notifier  Notifier
	maxSize   int64
	folder    string
	logger    *slog.Logger
	newID     func() string
}

// Option configures a Service.
type Option func(*Service)

// WithModerator enables content screening.
func WithModerator(c moderation.Checker) Option {
	return func(s *Service) { s.moderator = c }
}

// WithNotifier publishes an event after each stored upload.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithMaxSize overrides DefaultMaxSize.
func WithMaxSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSize = n
		}
	}
}

// WithDefaultFolder sets the folder used when a request names none.
func WithDefaultFolder(folder string) Option {
	return func(s *Service) {
		if strings.TrimSpace(folder) != "" {
			s.folder = folder
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an upload service.
func NewService(store storage.Provider, l ledger.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		ledger:  l,
		maxSize: DefaultMaxSize,
		folder:  DefaultFolder,
		logger:  slog.Default(),
		newID:   func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxSize returns the upload size limit in bytes.
func (s *Service) MaxSize() int64 { return s.maxSize }

// Upload validates data and stores it under folder.
func (s *Service) Upload(ctx context.Context, filename, folder string, data []byte) (*Receipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload: empty file: %w", apperr.ErrInvalidInput)
	}
	if int64(len(data)) > s.maxSize {
		return nil, fmt.Errorf("upload: file too large (> %d bytes): %w", s.maxSize, apperr.ErrTooLarge)
	}

	ct := media.Detect(data)
	if ct == "" {
		return nil, fmt.Errorf("upload: only JPG and PNG are allowed: %w", apperr.ErrUnsupportedMedia)
	}

	if strings.TrimSpace(folder) == "" {
		folder = s.folder
	}
	prefix, err := CleanFolder(folder)
	if err != nil {
		return nil, err
	}

	verdict := ModerationSkipped
	if s.moderator != nil {
		if err := s.moderator.Check(ctx, filename, ct, data); err != nil {
			return nil, err
		}
		verdict = ModerationPassed
	}

	key := prefix + s.newID() + media.Extension(ct)
	etag := checksum.Sum(data)
	rec := models.Upload{
		Key:              key,
		ContentType:      ct,
		Size:             int64(len(data)),
		ETag:             etag,
		OriginalFilename: baseName(filename),
	}

	// The row goes in before the file so the watcher finds a matching etag
	// and stays quiet.
	recorded := true
	if err := s.ledger.Record(ctx, rec); err != nil {
		recorded = false
		s.logger.Warn("upload: ledger record failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := s.store.Write(key, data); err != nil {
		if recorded {
			if derr := s.ledger.Delete(ctx, key); derr != nil {
				s.logger.Warn("upload: ledger rollback failed", slog.String("key", key), slog.String("error", derr.Error()))
			}
		}
		return nil, fmt.Errorf("upload: store %s: %w", key, err)
	}

	s.logger.Info("upload stored",
		slog.String("key", key),
		slog.String("content_type", ct),
		slog.Int64("size", rec.Size),
		slog.String("moderation", verdict))

	if s.notifier != nil {
		s.notifier.PublishUploadEvent("created", key)
	}

	return &Receipt{
		Key:         key,
		ContentType: ct,
		Size:        rec.Size,
		ETag:        etag,
		URL:         "/media/" + key,
		Moderation:  verdict,
	}, nil
}

// List returns recorded uploads, newest first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]models.Upload, int, error) {
	return s.ledger.List(ctx, limit, offset)
}

// CleanFolder turns a user-supplied folder into a key prefix: surrounding
// whitespace and leading slashes removed, a trailing slash ensured. An empty
// folder maps to DefaultFolder. Traversal segments are rejected.
func CleanFolder(folder string) (string, error) {
	f := strings.TrimSpace(folder)
	if f == "" {
		f = DefaultFolder
	}
	f = strings.TrimLeft(f, "/")
	if f == "" {
		return "", nil
	}
	for _, seg := range strings.Split(strings.TrimRight(f, "/"), "/") {
		if seg == ".." || seg == "." || strings.ContainsAny(seg, "\\\x00") {
			return "", fmt.Errorf("upload: invalid folder %q: %w", folder, apperr.ErrInvalidInput)
		}
	}
	if !strings.HasSuffix(f, "/") {
		f += "/"
	}
	return f, nil
}

// baseName strips any client-side directory from filename.
func baseName(filename string) string {
	if filename == "" {
		return ""
	}
	return path.Base(strings.ReplaceAll(filename, "\\", "/"))
}
