package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/civicpulse/backend/internal/dedup"
	"github.com/civicpulse/backend/internal/http/middleware"
	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeIntake struct {
	lastReq service.IntakeRequest
	issue   models.Issue
	err     error
}

func (f *fakeIntake) Submit(ctx context.Context, req service.IntakeRequest) (models.Issue, error) {
	f.lastReq = req
	if f.err != nil {
		return models.Issue{}, f.err
	}
	return f.issue, nil
}

type fakeAssigner struct {
	assigned map[string]string
	auto     models.Employee
	err      error
}

func (f *fakeAssigner) Assign(ctx context.Context, issueID, employeeID string) error {
	if f.err != nil {
		return f.err
	}
	if f.assigned == nil {
		f.assigned = map[string]string{}
	}
	f.assigned[issueID] = employeeID
	return nil
}

func (f *fakeAssigner) AutoAssign(ctx context.Context, issueID string) (models.Employee, error) {
	if f.err != nil {
		return models.Employee{}, f.err
	}
	return f.auto, nil
}

func newTestHandler(intake IntakeSubmitter, assigner Assigner) *Handler {
	return &Handler{
		Intake:    intake,
		Assigner:  assigner,
		Validator: validator.New(),
		Logger:    zerolog.Nop(),
	}
}

func multipartBody(t *testing.T, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func performCreate(t *testing.T, h *Handler, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := multipartBody(t, fields)
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(middleware.UserIDHeader, "user-1")

	rec := httptest.NewRecorder()
	r := gin.New()
	r.Use(middleware.RequireUser())
	r.POST("/api/issues", h.CreateIssue)
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreateIssueAdmitted(t *testing.T) {
	intake := &fakeIntake{issue: models.Issue{ID: "i1", Status: models.StatusOpen}}
	h := newTestHandler(intake, nil)

	rec := performCreate(t, h, map[string]string{
		"title":       "Pothole",
		"description": "deep pothole on main street",
		"lat":         "12.9716",
		"lng":         "77.5946",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if intake.lastReq.CreatedBy != "user-1" {
		t.Fatalf("expected creator from header, got %q", intake.lastReq.CreatedBy)
	}
	if intake.lastReq.Lat != 12.9716 {
		t.Fatalf("unexpected lat %v", intake.lastReq.Lat)
	}
}

func TestCreateIssueDuplicateConflict(t *testing.T) {
	intake := &fakeIntake{err: &service.DuplicateError{IDs: []string{"a", "b"}}}
	h := newTestHandler(intake, nil)

	rec := performCreate(t, h, map[string]string{
		"title":       "Pothole",
		"description": "deep pothole on main street",
		"lat":         "12.9716",
		"lng":         "77.5946",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Message         string   `json:"message"`
		SimilarIssueIDs []string `json:"similarIssueIds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if len(body.SimilarIssueIDs) != 2 || body.SimilarIssueIDs[0] != "a" {
		t.Fatalf("unexpected similarIssueIds: %v", body.SimilarIssueIDs)
	}
	if body.Message == "" {
		t.Fatalf("conflict body must carry a message")
	}
}

func TestCreateIssueInvalidInput(t *testing.T) {
	intake := &fakeIntake{err: dedup.ErrInvalidRequest}
	h := newTestHandler(intake, nil)

	rec := performCreate(t, h, map[string]string{
		"title":       "x",
		"description": "   ",
		"lat":         "95.0",
		"lng":         "77.5946",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateIssueMissingFields(t *testing.T) {
	h := newTestHandler(&fakeIntake{}, nil)

	rec := performCreate(t, h, map[string]string{"title": "no description or coords"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "VALIDATION") {
		t.Fatalf("expected validation error envelope, got %s", rec.Body.String())
	}
}

func TestCreateIssueRequiresUser(t *testing.T) {
	h := newTestHandler(&fakeIntake{}, nil)
	body, contentType := multipartBody(t, map[string]string{
		"title": "t", "description": "d", "lat": "1", "lng": "2",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/issues", body)
	req.Header.Set("Content-Type", contentType)

	rec := httptest.NewRecorder()
	r := gin.New()
	r.Use(middleware.RequireUser())
	r.POST("/api/issues", h.CreateIssue)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without identity header, got %d", rec.Code)
	}
}

func TestAssignIssueAuto(t *testing.T) {
	assigner := &fakeAssigner{auto: models.Employee{ID: "e7", Department: "roads"}}
	h := newTestHandler(nil, assigner)

	req := httptest.NewRequest(http.MethodPost, "/api/issues/i1/assign", nil)
	rec := httptest.NewRecorder()
	r := gin.New()
	r.POST("/api/issues/:id/assign", h.AssignIssue)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "e7") {
		t.Fatalf("expected picked employee in body, got %s", rec.Body.String())
	}
}

func TestAssignIssueClosedConflict(t *testing.T) {
	assigner := &fakeAssigner{err: service.ErrIssueClosed}
	h := newTestHandler(nil, assigner)

	body := bytes.NewBufferString(`{"employee_id":"e1"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/issues/i1/assign", body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r := gin.New()
	r.POST("/api/issues/:id/assign", h.AssignIssue)
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for closed issue, got %d", rec.Code)
	}
}

func TestHealthzWithoutStore(t *testing.T) {
	h := newTestHandler(nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	r := gin.New()
	r.GET("/healthz", h.Healthz)
	r.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestAssignErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrNoDepartment, http.StatusUnprocessableEntity},
		{service.ErrNoEligibleEmployees, http.StatusUnprocessableEntity},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h := newTestHandler(nil, &fakeAssigner{err: tc.err})
		req := httptest.NewRequest(http.MethodPost, "/api/issues/i1/assign", nil)
		rec := httptest.NewRecorder()
		r := gin.New()
		r.POST("/api/issues/:id/assign", h.AssignIssue)
		r.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("err %v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}
