package service

import (
	"context"
	"errors"
	"sort"

	"github.com/rs/zerolog"

	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/utils"
)

var (
	ErrIssueClosed         = errors.New("issue is resolved or closed")
	ErrNoDepartment        = errors.New("issue has no department")
	ErrNoEligibleEmployees = errors.New("no eligible employees in department")
)

// AssignmentStore is the slice of the store assignment needs.
type AssignmentStore interface {
	GetIssue(ctx context.Context, id string) (models.Issue, error)
	GetEmployee(ctx context.Context, id string) (models.Employee, error)
	ListEmployees(ctx context.Context, department string) ([]models.Employee, error)
	AssignIssue(ctx context.Context, issueID, employeeID string) error
}

type AssignmentService struct {
	Store  AssignmentStore
	Logger zerolog.Logger
}

// Assign routes an issue to a named employee after checking both exist and
// the issue is still actionable.
func (s *AssignmentService) Assign(ctx context.Context, issueID, employeeID string) error {
	issue, err := s.Store.GetIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if models.IsClosedStatus(issue.Status) {
		return ErrIssueClosed
	}
	if _, err := s.Store.GetEmployee(ctx, employeeID); err != nil {
		return err
	}
	return s.Store.AssignIssue(ctx, issueID, employeeID)
}

// AutoAssign picks the least-loaded employee in the issue's department and
// assigns deterministically.
func (s *AssignmentService) AutoAssign(ctx context.Context, issueID string) (models.Employee, error) {
	issue, err := s.Store.GetIssue(ctx, issueID)
	if err != nil {
		return models.Employee{}, err
	}
	if models.IsClosedStatus(issue.Status) {
		return models.Employee{}, ErrIssueClosed
	}
	if issue.Department == "" {
		return models.Employee{}, ErrNoDepartment
	}

	employees, err := s.Store.ListEmployees(ctx, issue.Department)
	if err != nil {
		return models.Employee{}, err
	}
	picked, err := PickAssignee(issueID, employees)
	if err != nil {
		return models.Employee{}, err
	}
	if err := s.Store.AssignIssue(ctx, issueID, picked.ID); err != nil {
		return models.Employee{}, err
	}
	return picked, nil
}

// PickAssignee sorts by load then id and round-robins over the two least
// loaded using a stable hash of the issue id, so retries land on the same
// employee.
func PickAssignee(issueID string, employees []models.Employee) (models.Employee, error) {
	if len(employees) == 0 {
		return models.Employee{}, ErrNoEligibleEmployees
	}
	sorted := make([]models.Employee, len(employees))
	copy(sorted, employees)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CurrentLoad == sorted[j].CurrentLoad {
			return sorted[i].ID < sorted[j].ID
		}
		return sorted[i].CurrentLoad < sorted[j].CurrentLoad
	})

	window := sorted
	if len(window) > 2 {
		window = sorted[:2]
	}
	idx := int(utils.HashStringToUint64(issueID) % uint64(len(window)))
	return window[idx], nil
}
