package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"

	"github.com/civicpulse/backend/internal/dedup"
	"github.com/civicpulse/backend/internal/models"
	"github.com/civicpulse/backend/internal/service"
)

type createIssueForm struct {
	Title       string `form:"title" validate:"required"`
	Description string `form:"description" validate:"required"`
	Department  string `form:"department"`
	Lat         string `form:"lat" validate:"required"`
	Lng         string `form:"lng" validate:"required"`
}

// CreateIssue godoc
// @Summary Report a new civic issue
// @Accept mpfd
// @Produce json
// @Param title formData string true "Short title"
// @Param description formData string true "What is wrong and where"
// @Param lat formData number true "Latitude"
// @Param lng formData number true "Longitude"
// @Success 201 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /api/issues [post]
func (h *Handler) CreateIssue(c *gin.Context) {
	var form createIssueForm
	if err := c.ShouldBind(&form); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid form", err.Error())
		return
	}
	if err := h.Validator.Struct(form); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "missing required fields", err.Error())
		return
	}
	lat, latErr := strconv.ParseFloat(strings.TrimSpace(form.Lat), 64)
	lng, lngErr := strconv.ParseFloat(strings.TrimSpace(form.Lng), 64)
	if latErr != nil || lngErr != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "lat and lng must be numbers", nil)
		return
	}

	media, err := h.collectMedia(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "could not read uploaded media", err.Error())
		return
	}

	issue, err := h.Intake.Submit(c.Request.Context(), service.IntakeRequest{
		Title:       form.Title,
		Description: form.Description,
		Department:  form.Department,
		CreatedBy:   userID(c),
		Lat:         lat,
		Lng:         lng,
		Media:       media,
	})
	if err != nil {
		var dup *service.DuplicateError
		switch {
		case errors.As(err, &dup):
			c.JSON(http.StatusConflict, gin.H{
				"message":         "A similar issue has already been reported nearby",
				"similarIssueIds": dup.IDs,
			})
		case errors.Is(err, dedup.ErrInvalidRequest):
			writeError(c, http.StatusBadRequest, "VALIDATION", err.Error(), nil)
		default:
			h.Logger.Error().Err(err).Msg("issue intake failed")
			writeError(c, http.StatusInternalServerError, "INTERNAL", "could not create issue", nil)
		}
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Issue reported", "issue": issue})
}

func (h *Handler) collectMedia(c *gin.Context) ([]service.MediaFile, error) {
	form, err := c.MultipartForm()
	if err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}
	var out []service.MediaFile
	for kind, field := range map[string]string{"image": "photos", "video": "video"} {
		for _, fh := range form.File[field] {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			data, err := io.ReadAll(f)
			f.Close()
			if err != nil {
				return nil, err
			}
			out = append(out, service.MediaFile{
				Name:        fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Kind:        kind,
				Data:        data,
			})
		}
	}
	return out, nil
}

// IssuesList godoc
// @Summary List issues with optional filters
// @Produce json
// @Param status query string false "open|in_progress|resolved|closed"
// @Param department query string false "Department slug"
// @Param q query string false "Substring match on title/description"
// @Success 200 {object} map[string]interface{}
// @Router /api/issues [get]
func (h *Handler) IssuesList(c *gin.Context) {
	status := c.Query("status")
	if status != "" && !models.ValidStatus(status) {
		writeError(c, http.StatusBadRequest, "VALIDATION", "unknown status", status)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	issues, err := h.Store.ListIssues(c.Request.Context(), status, c.Query("department"), c.Query("q"), limit, offset)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list issues failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list issues", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "count": len(issues)})
}

// IssueDetails returns the issue with its media and comments.
func (h *Handler) IssueDetails(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	issue, err := h.Store.GetIssue(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "issue not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("get issue failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not load issue", nil)
		return
	}
	media, err := h.Store.ListMedia(ctx, id)
	if err != nil {
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("list media failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not load issue media", nil)
		return
	}
	comments, err := h.Store.ListComments(ctx, id)
	if err != nil {
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("list comments failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not load issue comments", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issue": issue, "media": media, "comments": comments})
}

// UserIssues lists the caller's own reports, newest first.
func (h *Handler) UserIssues(c *gin.Context) {
	issues, err := h.Store.ListUserIssues(c.Request.Context(), userID(c))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list user issues failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list issues", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"issues": issues, "count": len(issues)})
}

// DepartmentIssues lists issues for the calling employee's department.
func (h *Handler) DepartmentIssues(c *gin.Context) {
	ctx := c.Request.Context()
	emp, err := h.Store.GetEmployee(ctx, userID(c))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusForbidden, "FORBIDDEN", "caller is not a registered employee", nil)
			return
		}
		h.Logger.Error().Err(err).Msg("employee lookup failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not resolve employee", nil)
		return
	}
	issues, err := h.Store.ListDepartmentIssues(ctx, emp.Department)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list department issues failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list issues", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"department": emp.Department, "issues": issues, "count": len(issues)})
}

type updateStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=open in_progress resolved closed"`
}

// UpdateStatus godoc
// @Summary Move an issue to a new lifecycle status
// @Accept json
// @Produce json
// @Router /api/issues/{id}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "status must be one of open, in_progress, resolved, closed", nil)
		return
	}
	id := c.Param("id")
	if err := h.Store.UpdateIssueStatus(c.Request.Context(), id, req.Status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "issue not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("status update failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not update status", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "status": req.Status})
}

// ClassifyIssue runs the image department classifier over the issue's first
// photo and records the predicted department.
func (h *Handler) ClassifyIssue(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if h.DeptClassifier == nil {
		writeError(c, http.StatusServiceUnavailable, "UNAVAILABLE", "department classifier not configured", nil)
		return
	}
	media, err := h.Store.ListMedia(ctx, id)
	if err != nil {
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("list media failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not load issue media", nil)
		return
	}
	var imageURL string
	for _, m := range media {
		if m.FileType == "image" {
			imageURL = m.FileURL
			break
		}
	}
	if imageURL == "" {
		writeError(c, http.StatusUnprocessableEntity, "NO_IMAGE", "issue has no photo to classify", nil)
		return
	}
	dept, err := h.DeptClassifier.ClassifyImage(ctx, imageURL)
	if err != nil {
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("department classification failed")
		writeError(c, http.StatusBadGateway, "CLASSIFIER", "department classifier failed", nil)
		return
	}
	if err := h.Store.UpdateIssueDepartment(ctx, id, dept); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "issue not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("issue_id", id).Msg("department update failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not record department", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": id, "department": dept})
}

// NearbyDebug exposes the gate's candidate query for operators.
func (h *Handler) NearbyDebug(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "lat and lng query params are required", nil)
		return
	}
	nearby, err := h.Store.FindNearbyOpen(c.Request.Context(), lat, lng, h.DedupRadiusM, h.DedupMaxCandidates)
	if err != nil {
		h.Logger.Error().Err(err).Msg("nearby query failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "nearby query failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"radius_m": h.DedupRadiusM, "candidates": nearby})
}

type reverseGeocodeRequest struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}

// ReverseGeocode resolves coordinates to a human-readable address.
func (h *Handler) ReverseGeocode(c *gin.Context) {
	var req reverseGeocodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "coordinates out of range", nil)
		return
	}
	addr, err := h.Geocoder.Reverse(c.Request.Context(), req.Lat, req.Lng)
	if err != nil {
		writeError(c, http.StatusBadGateway, "GEOCODE", "reverse geocoding failed", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": addr})
}
