package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Kshitij83/skillcy/internal/models"
	"github.com/Kshitij83/skillcy/internal/policy"
	appErrors "github.com/Kshitij83/skillcy/pkg/errors"
	"github.com/Kshitij83/skillcy/pkg/export"
	"github.com/Kshitij83/skillcy/pkg/storage"
)

type libraryExportRepository interface {
	ListAllLibrary(ctx context.Context, userID string) ([]models.LibraryEntry, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type exportStore interface {
	Save(name string, data []byte) error
	Read(name string) ([]byte, error)
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type linkSigner interface {
	Sign(owner, relPath string) (string, time.Time, error)
	Verify(token string) (owner, relPath string, err error)
	TTL() time.Duration
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a user's library as CSV or PDF.
type ExportService struct {
	library libraryExportRepository
	csv     csvRenderer
	pdf     pdfRenderer
	store   exportStore
	links   linkSigner
	logger  *zap.Logger
	now     func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(library libraryExportRepository, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{library: library, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// WithSharing enables stored exports downloadable through signed links.
func (s *ExportService) WithSharing(store exportStore, links linkSigner) *ExportService {
	s.store, s.links = store, links
	return s
}

// unavailableCourse stands in for the title of a course the reader can no longer see.
const unavailableCourse = "(unavailable)"

var libraryHeaders = []string{"Course", "Type", "Access", "Difficulty", "Added", "Completed", "Completed At"}

// ExportLibrary renders every enrollment of actor in the requested format.
func (s *ExportService) ExportLibrary(ctx context.Context, actor policy.Actor, rawFormat string) (*ExportFile, error) {
	if !actor.Authenticated() {
		return nil, appErrors.ErrUnauthorized
	}
	format, ok := export.ParseFormat(rawFormat)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	entries, err := s.library.ListAllLibrary(ctx, actor.UserID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load library")
	}

	generated := s.now().UTC()
	dataset := export.Dataset{
		Title:   fmt.Sprintf("Library export %s", generated.Format("2006-01-02")),
		Headers: libraryHeaders,
	}
	for _, entry := range entries {
		title, contentType, access, difficulty := unavailableCourse, "", "", ""
		if c := entry.Course; c != nil {
			title, contentType, access, difficulty = c.Title, string(c.ContentType), string(c.AccessType), difficultyLabel(c.Difficulty)
		}
		dataset.AddRow(
			title,
			contentType,
			access,
			difficulty,
			entry.AddedAt.UTC().Format(time.RFC3339),
			yesNo(entry.Completed),
			formatOptionalTime(entry.CompletedAt),
		)
	}

	var payload []byte
	switch format {
	case export.FormatPDF:
		payload, err = s.pdf.Render(dataset)
	default:
		payload, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render export")
	}

	s.logger.Debug("library exported", zap.String("user_id", actor.UserID), zap.String("format", string(format)), zap.Int("rows", len(entries)))
	return &ExportFile{
		Filename:    fmt.Sprintf("library-%s.%s", generated.Format("20060102-150405"), format),
		ContentType: format.ContentType(),
		Payload:     payload,
	}, nil
}

// ShareLibrary renders the library, stores it under the owner's directory and returns a signed
// link. Anyone holding the link can download the file until it expires.
func (s *ExportService) ShareLibrary(ctx context.Context, actor policy.Actor, rawFormat string) (*models.ExportLink, error) {
	if s.store == nil || s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export sharing is disabled")
	}
	file, err := s.ExportLibrary(ctx, actor, rawFormat)
	if err != nil {
		return nil, err
	}

	name := path.Join(actor.UserID, uuid.NewString(), file.Filename)
	if err := s.store.Save(name, file.Payload); err != nil {
		return nil, appErrors.Internal(err, "failed to store export")
	}
	token, expiresAt, err := s.links.Sign(actor.UserID, name)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to sign export link")
	}

	s.logger.Info("library export shared", zap.String("user_id", actor.UserID), zap.String("file", name), zap.Time("expires_at", expiresAt))
	return &models.ExportLink{Token: token, Filename: file.Filename, ExpiresAt: expiresAt}, nil
}

// OpenShared resolves a signed link to the stored file. Invalid, expired and pruned links all
// report not found.
func (s *ExportService) OpenShared(_ context.Context, token string) (*ExportFile, error) {
	if s.store == nil || s.links == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "export sharing is disabled")
	}
	owner, name, err := s.links.Verify(token)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link is invalid or expired")
	}
	if !strings.HasPrefix(name, owner+"/") {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "download link is invalid or expired")
	}

	payload, err := s.store.Read(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, storage.ErrInvalidPath) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export no longer available")
		}
		return nil, appErrors.Internal(err, "failed to read export")
	}

	filename := path.Base(name)
	format, _ := export.ParseFormat(strings.TrimPrefix(path.Ext(filename), "."))
	return &ExportFile{Filename: filename, ContentType: format.ContentType(), Payload: payload}, nil
}

// PruneExpired removes stored exports whose links can no longer be valid.
func (s *ExportService) PruneExpired() (int, error) {
	if s.store == nil || s.links == nil {
		return 0, nil
	}
	deleted, err := s.store.CleanupOlderThan(s.links.TTL())
	if err != nil {
		return 0, err
	}
	if len(deleted) > 0 {
		s.logger.Info("expired exports pruned", zap.Int("files", len(deleted)))
	}
	return len(deleted), nil
}

func difficultyLabel(d *models.Difficulty) string {
	if d == nil {
		return ""
	}
	label := string(*d)
	if label == "" {
		return ""
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
