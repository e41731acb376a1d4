package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/civicpulse/backend/internal/classify"
	"github.com/civicpulse/backend/internal/db"
	"github.com/civicpulse/backend/internal/geocode"
	"github.com/civicpulse/backend/internal/http/middleware"
	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/service"
)

// IntakeSubmitter is what the create-issue handler needs from the intake
// service. Kept as an interface so handler tests can stub the whole write
// path.
type IntakeSubmitter interface {
	Submit(ctx context.Context, req service.IntakeRequest) (models.Issue, error)
}

type Assigner interface {
	Assign(ctx context.Context, issueID, employeeID string) error
	AutoAssign(ctx context.Context, issueID string) (models.Employee, error)
}

type Handler struct {
	Store          *db.Store
	Intake         IntakeSubmitter
	Assigner       Assigner
	DeptClassifier classify.Classifier
	Geocoder       geocode.Geocoder
	Validator      *validator.Validate
	Logger         zerolog.Logger

	DedupRadiusM       float64
	DedupMaxCandidates int
}

func writeError(c *gin.Context, status int, code, message string, details interface{}) {
	body := gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
	if details != nil {
		body["error"].(gin.H)["details"] = details
	}
	c.JSON(status, body)
}

func userID(c *gin.Context) string {
	if v, ok := c.Get(middleware.UserIDHeader); ok {
		return v.(string)
	}
	return c.GetHeader(middleware.UserIDHeader)
}

// Healthz godoc
// @Summary Liveness and database health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	if h.Store != nil {
		if err := h.Store.Ping(c.Request.Context()); err != nil {
			writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "database ping failed", nil)
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
