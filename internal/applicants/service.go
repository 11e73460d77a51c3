package applicants

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Repository is the persistence contract the service depends on.
type Repository interface {
	Get(ctx context.Context, id int64) (Applicant, error)
	List(ctx context.Context, f Filter) (Page, error)
	Stats(ctx context.Context) (Stats, error)
	UpdateStatus(ctx context.Context, id int64, status Status, reviewerID int64, notes string) error
}

// Service implements the reviewer-facing operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(log *slog.Logger, repo Repository) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:   repo,
		logger: log.With(slog.String("service", "applicants")),
	}
}

func (s *Service) Get(ctx context.Context, id int64) (Applicant, error) {
	return s.repo.Get(ctx, id)
}

// List clamps the page size and validates enum filters.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	if err := validateFilter(f); err != nil {
		return Page{}, err
	}
	if f.Limit <= 0 {
		f.Limit = DefaultPageSize
	}
	if f.Limit > MaxPageSize {
		f.Limit = MaxPageSize
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx)
}

// Review moves a pending applicant to accepted or rejected. Decided
// applicants cannot be reviewed again.
func (s *Service) Review(ctx context.Context, id int64, status Status, reviewerID int64, notes string) (Applicant, error) {
	if status != StatusAccepted && status != StatusRejected {
		return Applicant{}, ErrInvalidStatus
	}
	if err := s.repo.UpdateStatus(ctx, id, status, reviewerID, notes); err != nil {
		return Applicant{}, err
	}
	s.logger.Info("applicant reviewed",
		slog.Int64("applicant_id", id),
		slog.String("status", string(status)),
		slog.Int64("reviewer_id", reviewerID),
	)
	return s.repo.Get(ctx, id)
}

var exportHeader = []string{
	"ID", "Type", "Name", "Phone", "Church", "Address", "Status",
	"Telegram Username", "Created At", "Reviewer", "Reviewer Notes",
}

// ExportCSV writes every applicant matching the filter as CSV.
func (s *Service) ExportCSV(ctx context.Context, w io.Writer, f Filter) error {
	if err := validateFilter(f); err != nil {
		return err
	}
	f.Limit, f.Offset = 0, 0
	page, err := s.repo.List(ctx, f)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, a := range page.Items {
		record := []string{
			strconv.FormatInt(a.ID, 10),
			string(a.Type),
			a.Name,
			a.Phone,
			a.Church,
			a.Address,
			string(a.Status),
			a.TelegramUsername,
			a.CreatedAt.UTC().Format(time.RFC3339),
			a.ReviewerName,
			a.ReviewerNotes,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func validateFilter(f Filter) error {
	if f.Type != "" && !f.Type.Valid() {
		return ErrInvalidType
	}
	if f.Status != "" && !f.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}
