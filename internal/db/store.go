package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civicpulse/backend/internal/models"
)

type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() {
	s.Pool.Close()
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// haversineExpr computes the great-circle distance in meters between an issue
// row and the query point ($1=lat, $2=lng).
const haversineExpr = `2 * 6371000 * asin(sqrt(
	pow(sin(radians(lat - $1) / 2), 2) +
	cos(radians($1)) * cos(radians(lat)) * pow(sin(radians(lng - $2) / 2), 2)
))`

// FindNearbyOpen returns open issues within radiusM of the point, closest
// first, capped at maxResults. Resolved and closed issues are never duplicate
// targets. This is the GeoIndex behind the duplicate gate.
func (s *Store) FindNearbyOpen(ctx context.Context, lat, lng, radiusM float64, maxResults int) ([]models.NearbyIssue, error) {
	if maxResults <= 0 {
		maxResults = 25
	}
	query := fmt.Sprintf(`
		SELECT id, description, lat, lng
		FROM issues
		WHERE status NOT IN ('resolved', 'closed')
		  AND %s <= $3
		ORDER BY %s ASC
		LIMIT $4
	`, haversineExpr, haversineExpr)

	rows, err := s.Pool.Query(ctx, query, lat, lng, radiusM, maxResults)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NearbyIssue
	for rows.Next() {
		var n models.NearbyIssue
		if err := rows.Scan(&n.ID, &n.Description, &n.Lat, &n.Lng); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CreateIssue(ctx context.Context, issue models.Issue) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO issues (id, title, description, status, department, created_by, lat, lng, address, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, issue.ID, issue.Title, issue.Description, issue.Status, issue.Department, issue.CreatedBy,
		issue.Lat, issue.Lng, issue.Address, issue.CreatedAt, issue.UpdatedAt)
	return err
}

func (s *Store) GetIssue(ctx context.Context, id string) (models.Issue, error) {
	var i models.Issue
	err := s.Pool.QueryRow(ctx, `
		SELECT id, title, description, status, department, created_by, lat, lng, address, created_at, updated_at
		FROM issues WHERE id = $1
	`, id).Scan(&i.ID, &i.Title, &i.Description, &i.Status, &i.Department, &i.CreatedBy,
		&i.Lat, &i.Lng, &i.Address, &i.CreatedAt, &i.UpdatedAt)
	return i, err
}

func (s *Store) ListIssues(ctx context.Context, status, department, q string, limit, offset int) ([]models.Issue, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `SELECT id, title, description, status, department, created_by, lat, lng, address, created_at, updated_at FROM issues`
	var args []any
	var wheres []string
	if status != "" {
		args = append(args, status)
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if department != "" {
		args = append(args, department)
		wheres = append(wheres, fmt.Sprintf("department = $%d", len(args)))
	}
	if q != "" {
		args = append(args, "%"+q+"%")
		wheres = append(wheres, fmt.Sprintf("(description ILIKE $%d OR title ILIKE $%d)", len(args), len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT $" + fmt.Sprint(len(args)+1) + " OFFSET $" + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (s *Store) ListUserIssues(ctx context.Context, userID string) ([]models.Issue, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, title, description, status, department, created_by, lat, lng, address, created_at, updated_at
		FROM issues WHERE created_by = $1 ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func (s *Store) ListDepartmentIssues(ctx context.Context, department string) ([]models.Issue, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, title, description, status, department, created_by, lat, lng, address, created_at, updated_at
		FROM issues WHERE department = $1 AND status NOT IN ('resolved', 'closed')
		ORDER BY created_at ASC
	`, department)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanIssues(rows)
}

func scanIssues(rows pgx.Rows) ([]models.Issue, error) {
	var out []models.Issue
	for rows.Next() {
		var i models.Issue
		if err := rows.Scan(&i.ID, &i.Title, &i.Description, &i.Status, &i.Department, &i.CreatedBy,
			&i.Lat, &i.Lng, &i.Address, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

func (s *Store) UpdateIssueStatus(ctx context.Context, id, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE issues SET status = $1, updated_at = NOW() WHERE id = $2`, status, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) UpdateIssueDepartment(ctx context.Context, id, department string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE issues SET department = $1, updated_at = NOW() WHERE id = $2`, department, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (s *Store) InsertMedia(ctx context.Context, media []models.IssueMedia) error {
	if len(media) == 0 {
		return nil
	}
	rows := make([][]any, 0, len(media))
	for _, m := range media {
		rows = append(rows, []any{m.ID, m.IssueID, m.FileURL, m.FileType, m.CreatedAt})
	}
	_, err := s.Pool.CopyFrom(ctx, pgx.Identifier{"issue_media"},
		[]string{"id", "issue_id", "file_url", "file_type", "created_at"}, pgx.CopyFromRows(rows))
	return err
}

func (s *Store) ListMedia(ctx context.Context, issueID string) ([]models.IssueMedia, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, issue_id, file_url, file_type, created_at
		FROM issue_media WHERE issue_id = $1 ORDER BY created_at ASC
	`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.IssueMedia
	for rows.Next() {
		var m models.IssueMedia
		if err := rows.Scan(&m.ID, &m.IssueID, &m.FileURL, &m.FileType, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CreateComment(ctx context.Context, c models.Comment) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO comments (id, issue_id, author_id, body, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, c.ID, c.IssueID, c.AuthorID, c.Body, c.CreatedAt)
	return err
}

func (s *Store) ListComments(ctx context.Context, issueID string) ([]models.Comment, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, issue_id, author_id, body, created_at
		FROM comments WHERE issue_id = $1 ORDER BY created_at ASC
	`, issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.IssueID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) CreateEmployee(ctx context.Context, e models.Employee) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO employees (id, name, email, department, position, current_load, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, e.ID, e.Name, e.Email, e.Department, e.Position, e.CurrentLoad, e.UpdatedAt)
	return err
}

func (s *Store) GetEmployee(ctx context.Context, id string) (models.Employee, error) {
	var e models.Employee
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, email, department, position, current_load, updated_at
		FROM employees WHERE id = $1
	`, id).Scan(&e.ID, &e.Name, &e.Email, &e.Department, &e.Position, &e.CurrentLoad, &e.UpdatedAt)
	return e, err
}

func (s *Store) ListEmployees(ctx context.Context, department string) ([]models.Employee, error) {
	query := `SELECT id, name, email, department, position, current_load, updated_at FROM employees`
	var args []any
	if department != "" {
		args = append(args, department)
		query += " WHERE department = $1"
	}
	query += " ORDER BY current_load ASC, id ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Employee
	for rows.Next() {
		var e models.Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Email, &e.Department, &e.Position, &e.CurrentLoad, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AssignIssue records the assignment and bumps the employee's load in one
// transaction; an already-assigned issue is reassigned and the previous
// assignee's load is released.
func (s *Store) AssignIssue(ctx context.Context, issueID, employeeID string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var prev *string
		err := tx.QueryRow(ctx, `SELECT employee_id FROM issue_assignments WHERE issue_id = $1`, issueID).Scan(&prev)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return err
		}
		if prev != nil {
			if *prev == employeeID {
				return nil
			}
			if _, err := tx.Exec(ctx, `UPDATE employees SET current_load = current_load - 1, updated_at = NOW() WHERE id = $1`, *prev); err != nil {
				return err
			}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO issue_assignments (issue_id, employee_id, assigned_at)
			VALUES ($1,$2,NOW())
			ON CONFLICT (issue_id) DO UPDATE SET employee_id = EXCLUDED.employee_id, assigned_at = EXCLUDED.assigned_at
		`, issueID, employeeID)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE employees SET current_load = current_load + 1, updated_at = NOW() WHERE id = $1`, employeeID); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `UPDATE issues SET status = 'in_progress', updated_at = NOW() WHERE id = $1 AND status = 'open'`, issueID)
		return err
	})
}

func (s *Store) CreateAnnouncement(ctx context.Context, a models.Announcement) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO announcements (id, title, body, department, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, a.ID, a.Title, a.Body, a.Department, a.CreatedAt)
	return err
}

func (s *Store) ListAnnouncements(ctx context.Context, limit int) ([]models.Announcement, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT id, title, body, department, created_at
		FROM announcements ORDER BY created_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Announcement
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Department, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
