package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/civicpulse/backend/internal/models"
)

type createCommentRequest struct {
	Body string `json:"body" validate:"required,max=2000"`
}

// CreateComment adds a comment to an issue on behalf of the caller.
func (h *Handler) CreateComment(c *gin.Context) {
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "comment body is required", nil)
		return
	}
	ctx := c.Request.Context()
	issueID := c.Param("id")
	if _, err := h.Store.GetIssue(ctx, issueID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "issue not found", nil)
			return
		}
		h.Logger.Error().Err(err).Str("issue_id", issueID).Msg("get issue failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not load issue", nil)
		return
	}

	comment := models.Comment{
		ID:        uuid.NewString(),
		IssueID:   issueID,
		AuthorID:  userID(c),
		Body:      req.Body,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.Store.CreateComment(ctx, comment); err != nil {
		h.Logger.Error().Err(err).Str("issue_id", issueID).Msg("create comment failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not save comment", nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"comment": comment})
}

func (h *Handler) CommentsList(c *gin.Context) {
	comments, err := h.Store.ListComments(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.Logger.Error().Err(err).Msg("list comments failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list comments", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"comments": comments, "count": len(comments)})
}

type createAnnouncementRequest struct {
	Title      string `json:"title" validate:"required"`
	Body       string `json:"body" validate:"required"`
	Department string `json:"department"`
}

// CreateAnnouncement publishes a notice from a department to citizens.
func (h *Handler) CreateAnnouncement(c *gin.Context) {
	var req createAnnouncementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "BAD_REQUEST", "invalid body", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION", "title and body are required", nil)
		return
	}
	a := models.Announcement{
		ID:         uuid.NewString(),
		Title:      req.Title,
		Body:       req.Body,
		Department: req.Department,
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.CreateAnnouncement(c.Request.Context(), a); err != nil {
		h.Logger.Error().Err(err).Msg("create announcement failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not save announcement", nil)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"announcement": a})
}

func (h *Handler) AnnouncementsList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	announcements, err := h.Store.ListAnnouncements(c.Request.Context(), limit)
	if err != nil {
		h.Logger.Error().Err(err).Msg("list announcements failed")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "could not list announcements", nil)
		return
	}
	c.JSON(http.StatusOK, gin.H{"announcements": announcements, "count": len(announcements)})
}
