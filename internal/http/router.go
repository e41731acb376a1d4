package httpapi

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/civicpulse/backend/internal/classify"
	"github.com/civicpulse/backend/internal/config"
	"github.com/civicpulse/backend/internal/db"
	"github.com/civicpulse/backend/internal/geocode"
	"github.com/civicpulse/backend/internal/http/handlers"
	"github.com/civicpulse/backend/internal/http/middleware"

	_ "github.com/civicpulse/backend/docs"
)

func Router(cfg config.Config, store *db.Store, intake handlers.IntakeSubmitter, assigner handlers.Assigner, deptClassifier classify.Classifier, geocoder geocode.Geocoder, logger zerolog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.MaxMultipartMemory = cfg.MaxUploadSizeMB << 20

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Admin-Key", "X-Request-Id", "X-User-Id"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if cfg.CORSAllowed == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.CORSAllowed}
	}
	r.Use(cors.New(corsCfg))

	h := &handlers.Handler{
		Store:              store,
		Intake:             intake,
		Assigner:           assigner,
		DeptClassifier:     deptClassifier,
		Geocoder:           geocoder,
		Validator:          validator.New(),
		Logger:             logger,
		DedupRadiusM:       cfg.DedupRadiusM,
		DedupMaxCandidates: cfg.DedupMaxCandidates,
	}

	r.GET("/healthz", h.Healthz)
	r.Static(cfg.MediaBaseURL, cfg.MediaDir)

	api := r.Group("/api")
	{
		api.GET("/issues", h.IssuesList)
		api.GET("/issues/:id", h.IssueDetails)
		api.GET("/issues/:id/comments", h.CommentsList)
		api.GET("/announcements", h.AnnouncementsList)
	}

	user := api.Group("")
	user.Use(middleware.RequireUser())
	{
		user.POST("/issues", h.CreateIssue)
		user.GET("/me/issues", h.UserIssues)
		user.GET("/department/issues", h.DepartmentIssues)
		user.POST("/issues/:id/comments", h.CreateComment)
		user.POST("/geocode/reverse", h.ReverseGeocode)
	}

	admin := api.Group("")
	admin.Use(middleware.AdminKey(cfg.AdminKey))
	{
		admin.PATCH("/issues/:id/status", h.UpdateStatus)
		admin.POST("/issues/:id/assign", h.AssignIssue)
		admin.POST("/issues/:id/classify", h.ClassifyIssue)
		admin.GET("/employees", h.EmployeesList)
		admin.POST("/employees", h.CreateEmployee)
		admin.POST("/announcements", h.CreateAnnouncement)
		admin.GET("/debug/nearby", h.NearbyDebug)
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}
