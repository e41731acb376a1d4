package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/civicpulse/backend/internal/dedup"
	"github.com/civicpulse/backend/internal/geocode"
	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/storage"
)

// IssueWriter is the slice of the store the intake path needs.
type IssueWriter interface {
	CreateIssue(ctx context.Context, issue models.Issue) error
	InsertMedia(ctx context.Context, media []models.IssueMedia) error
}

// DuplicateError reports that the gate matched the submission to existing
// nearby issues. It is an expected outcome, surfaced to the caller as a
// conflict rather than a server fault.
type DuplicateError struct {
	IDs []string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("issue already reported nearby: %s", strings.Join(e.IDs, ", "))
}

type MediaFile struct {
	Name        string
	ContentType string
	Kind        string // "image" or "video"
	Data        []byte
}

type IntakeRequest struct {
	Title       string
	Description string
	Department  string
	CreatedBy   string
	Lat         float64
	Lng         float64
	Media       []MediaFile
}

// IntakeService is the write path for new reports: duplicate gate first, then
// reverse geocode, persist, and fan out media uploads.
type IntakeService struct {
	Store    IssueWriter
	Gate     *dedup.Gate
	Geocoder geocode.Geocoder
	Uploader storage.Uploader
	Cells    *dedup.CellLock // nil disables the per-geocell guard
	Timeout  time.Duration   // bounds one whole submission, geo query included
	Logger   zerolog.Logger
}

func (s *IntakeService) Submit(ctx context.Context, req IntakeRequest) (models.Issue, error) {
	// The deadline covers everything below, so a slow database or classifier
	// cannot hold an intake request (or its geocell) open indefinitely. A geo
	// or classifier call cut off by it fails open inside the gate.
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	// When enabled, the cell lock spans gate evaluation and persistence so a
	// second submission for the same spot sees the first one's row. The
	// submission deadline bounds how long the cell stays held.
	if s.Cells != nil {
		unlock := s.Cells.Lock(dedup.CellKey(req.Lat, req.Lng))
		defer unlock()
	}

	decision, err := s.Gate.Evaluate(ctx, req.Description, req.Lat, req.Lng)
	if err != nil {
		return models.Issue{}, err
	}
	if !decision.Admit {
		return models.Issue{}, &DuplicateError{IDs: decision.DuplicateIDs}
	}

	var address string
	if s.Geocoder != nil {
		addr, err := s.Geocoder.Reverse(ctx, req.Lat, req.Lng)
		if err != nil {
			s.Logger.Warn().Err(err).Msg("reverse geocode failed, storing issue without address")
		} else {
			address = addr
		}
	}

	now := time.Now().UTC()
	issue := models.Issue{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Status:      models.StatusOpen,
		Department:  strings.TrimSpace(req.Department),
		CreatedBy:   req.CreatedBy,
		Lat:         req.Lat,
		Lng:         req.Lng,
		Address:     address,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.Store.CreateIssue(ctx, issue); err != nil {
		return models.Issue{}, err
	}

	// The issue row is already durable; media problems degrade to a warning
	// instead of failing the submission.
	if len(req.Media) > 0 && s.Uploader != nil {
		if err := s.uploadMedia(ctx, issue.ID, req.Media); err != nil {
			s.Logger.Warn().Err(err).Str("issue_id", issue.ID).Msg("media upload failed")
		}
	}
	return issue, nil
}

func (s *IntakeService) uploadMedia(ctx context.Context, issueID string, files []MediaFile) error {
	media := make([]models.IssueMedia, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			name := fmt.Sprintf("%s-%d%s", issueID, i, filepath.Ext(f.Name))
			url, err := s.Uploader.Upload(gctx, name, f.ContentType, f.Data)
			if err != nil {
				return err
			}
			media[i] = models.IssueMedia{
				ID:        uuid.NewString(),
				IssueID:   issueID,
				FileURL:   url,
				FileType:  f.Kind,
				CreatedAt: time.Now().UTC(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return s.Store.InsertMedia(ctx, media)
}
