package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/service"
)

func (h *Handler) EmployeesList(c *gin.Context) {
	employees, err := h.Store.ListEmployees(c.Request.Context(), c.Query("department"))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list employees failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list employees", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"employees": employees, "count": len(employees)})
}

type createEmployeeRequest struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Department string `json:"department" validate:"required"`
	Position   int    `json:"position"`
}

func (h *Handler) CreateEmployee(c *gin.Context) {
	var req createEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "name, email and department are required", err.Error())
		return
	}
	e := models.Employee{
		ID:         uuid.NewString(),
		Name:       req.Name,
		Email:      req.Email,
		Department: req.Department,
		Position:   req.Position,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := h.Store.CreateEmployee(c.Request.Context(), e); err != nil {
		h.Logger.Error().Err(err).Msg("create employee failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not save employee", nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"employee": e})
}

type assignRequest struct {
	EmployeeID string `json:"employee_id"`
}

// AssignIssue routes an issue to a specific employee, or auto-assigns within
// the issue's department when no employee is named.
func (h *Handler) AssignIssue(c *gin.Context) {
	var req assignRequest
	// An absent or empty body means auto-assign.
	if err := c.ShouldBindJSON(&req); err != nil {
		req.EmployeeID = ""
	}
	ctx := c.Request.Context()
	issueID := c.Param("id")

	if req.EmployeeID != "" {
		if err := h.Assigner.Assign(ctx, issueID, req.EmployeeID); err != nil {
			h.assignError(c, issueID, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"issue_id": issueID, "employee_id": req.EmployeeID})
		return
	}

	picked, err := h.Assigner.AutoAssign(ctx, issueID)
	if err != nil {
		h.assignError(c, issueID, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue_id": issueID, "employee_id": picked.ID, "employee": picked})
}

func (h *Handler) assignError(c *gin.Context, issueID string, err error) {
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		writeError(c, http.StatusNotFound, "NOT_FOUND", "issue or employee not found", nil)
	case errors.Is(err, service.ErrIssueClosed):
		writeError(c, http.StatusConflict, "ISSUE_CLOSED", "issue is already resolved or closed", nil)
	case errors.Is(err, service.ErrNoDepartment):
		writeError(c, http.StatusUnprocessableEntity, "NO_DEPARTMENT", "issue has no department; classify it first", nil)
	case errors.Is(err, service.ErrNoEligibleEmployees):
		writeError(c, http.StatusUnprocessableEntity, "NO_EMPLOYEES", "no employees available in the department", nil)
	default:
		h.Logger.Error().Err(err).Str("issue_id", issueID).Msg("assignment failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "assignment failed", nil)
	}
}
