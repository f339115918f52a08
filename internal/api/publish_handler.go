package api

import (
	"fmt"
	"io"
	"net/http"

	"github.com/ales-api/internal/config"
	"github.com/ales-api/internal/models"
	"github.com/ales-api/internal/service"
	"github.com/ales-api/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PublishHandler handles publish, media and pin endpoints
type PublishHandler struct {
	services *service.Services
	cfg      *config.Config
	log      zerolog.Logger
}

// NewPublishHandler creates a new PublishHandler
func NewPublishHandler(services *service.Services, cfg *config.Config, log zerolog.Logger) *PublishHandler {
	return &PublishHandler{
		services: services,
		cfg:      cfg,
		log:      log.With().Str("handler", "publish").Logger(),
	}
}

// Submit handles POST /v1/publish
// Runs the publish flow to completion. A failed job is returned alongside
// the error so the client can retry it.
func (h *PublishHandler) Submit(c *gin.Context) {
	var draft models.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "title and content are required"})
		return
	}

	// Get idempotency key from header
	idempotencyKey := c.GetHeader("Idempotency-Key")

	job, err := h.services.Publish.Submit(c.Request.Context(), draft, idempotencyKey)
	if err != nil {
		body := errorBody(err)
		if job != nil {
			body["job"] = job
		}
		c.JSON(statusFor(err), body)
		return
	}

	h.log.Info().
		Str("job_id", job.ID).
		Str("state", string(job.State)).
		Msg("Publish request completed")

	c.JSON(http.StatusCreated, job)
}

// GetJob handles GET /v1/publish/:job_id
func (h *PublishHandler) GetJob(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.services.Publish.GetJob(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

// Retry handles POST /v1/publish/:job_id/retry
func (h *PublishHandler) Retry(c *gin.Context) {
	jobID, ok := h.jobID(c)
	if !ok {
		return
	}

	job, err := h.services.Publish.Retry(c.Request.Context(), jobID)
	if err != nil {
		body := errorBody(err)
		if job != nil {
			body["job"] = job
		}
		c.JSON(statusFor(err), body)
		return
	}

	c.JSON(http.StatusOK, job)
}

// jobID reads the job_id path parameter. Job ids are UUIDs, so anything
// else cannot name a job.
func (h *PublishHandler) jobID(c *gin.Context) (string, bool) {
	jobID := c.Param("job_id")
	if !validation.IsValidUUID(jobID) {
		respondError(c, fmt.Errorf("publish job %q: %w", jobID, models.ErrNotFound))
		return "", false
	}
	return jobID, true
}

// UploadMedia handles POST /v1/media
// Pins a multipart "file" and returns its CID for a draft's media list
func (h *PublishHandler) UploadMedia(c *gin.Context) {
	maxSize := h.cfg.Server.MaxUploadSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize+1024*1024)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file upload is required"})
		return
	}
	defer file.Close()

	// Validate file size
	if header.Size > maxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("file too large, max size is %d MB", maxSize/(1024*1024)),
		})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read uploaded file")
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read file"})
		return
	}

	pin, err := h.services.Publish.UploadMedia(c.Request.Context(), models.Content{
		Name:        header.Filename,
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		h.log.Error().Err(err).Str("file", header.Filename).Msg("Media upload failed")
		respondError(c, err)
		return
	}

	h.log.Info().
		Str("cid", pin.CID).
		Str("file", header.Filename).
		Int64("size_bytes", pin.Size).
		Msg("Media pinned")

	c.JSON(http.StatusCreated, pin)
}

// Reconcile handles POST /v1/pins/reconcile
// Runs one cleanup pass immediately instead of waiting for the ticker
func (h *PublishHandler) Reconcile(c *gin.Context) {
	report, err := h.services.Reconciler.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
