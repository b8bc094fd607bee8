package http

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"toll-verify-service/internal/config"
	"toll-verify-service/internal/domain/verify"
	"toll-verify-service/internal/service"
)

type Handler struct {
	verifyService *service.VerifyService
	recognizer    service.Recognizer
	config        *config.Config
	log           zerolog.Logger
}

func NewHandler(
	verifyService *service.VerifyService,
	recognizer service.Recognizer,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		verifyService: verifyService,
		recognizer:    recognizer,
		config:        cfg,
		log:           log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.POST("/verify", h.verify)
		public.POST("/ocr/dl", h.previewDL)
		public.POST("/ocr/plate", h.previewPlate)
		public.POST("/suspects", h.enrollSuspect)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/logs", h.listLogs)
		protected.GET("/dl-usage/:dl_number", h.dlUsage)
	}
}

func (h *Handler) verify(c *gin.Context) {
	req := verify.Request{
		ManualDL: strings.TrimSpace(c.PostForm("dl_number")),
		ManualRC: strings.TrimSpace(c.PostForm("rc_number")),
		Location: strings.TrimSpace(c.PostForm("location")),
		Tollgate: strings.TrimSpace(c.PostForm("tollgate")),
	}

	// Uploaded images are owned by this request; every exit path below runs
	// through the deferred cleanup.
	var tempPaths []string
	defer func() {
		for _, p := range tempPaths {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				h.log.Warn().Err(err).Str("path", p).Msg("failed to remove temp upload")
			}
		}
	}()

	for _, upload := range []struct {
		field string
		dest  *string
	}{
		{"dlImage", &req.DLImagePath},
		{"rcImage", &req.RCImagePath},
		{"driverImage", &req.DriverImagePath},
	} {
		file, err := c.FormFile(upload.field)
		if err != nil {
			continue
		}
		path, err := h.saveUpload(c, file)
		if err != nil {
			h.log.Error().Err(err).Str("field", upload.field).Msg("failed to save uploaded image")
			c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
			return
		}
		tempPaths = append(tempPaths, path)
		*upload.dest = path
	}

	result, err := h.verifyService.Verify(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		h.log.Error().Err(err).Msg("verification failed")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) previewDL(c *gin.Context) {
	h.preview(c, h.recognizer.ExtractDLNumber)
}

func (h *Handler) previewPlate(c *gin.Context) {
	h.preview(c, func(ctx context.Context, imagePath string) (string, error) {
		plate, rawText, err := h.recognizer.ExtractPlateNumber(ctx, imagePath)
		if err != nil {
			return "", err
		}
		if plate == "" {
			// No valid plate parsed; hand the operator the raw OCR text
			// to correct instead.
			return rawText, nil
		}
		return plate, nil
	})
}

// preview runs one OCR extraction so an operator can correct the text before
// the authoritative verify call.
func (h *Handler) preview(c *gin.Context, extract func(ctx context.Context, imagePath string) (string, error)) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}

	path, err := h.saveUpload(c, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to save uploaded image")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer os.Remove(path)

	text, err := extract(c.Request.Context(), path)
	if err != nil {
		h.log.Warn().Err(err).Msg("recognition service unavailable")
		c.JSON(http.StatusBadGateway, errorResponse("recognition service unavailable"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"extracted_text": text})
}

func (h *Handler) enrollSuspect(c *gin.Context) {
	name := strings.TrimSpace(c.PostForm("name"))
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("image file is required"))
		return
	}

	path, err := h.saveUpload(c, file)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to save uploaded image")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}
	defer os.Remove(path)

	if err := h.verifyService.EnrollSuspect(c.Request.Context(), path, name); err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
		c.JSON(http.StatusBadGateway, errorResponse("face recognition service unavailable"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "submitted"})
}

func (h *Handler) listLogs(c *gin.Context) {
	limit := 50
	if l := c.Query("limit"); l != "" {
		if parsed, err := parseInt(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	offset := 0
	if o := c.Query("offset"); o != "" {
		if parsed, err := parseInt(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	logs, err := h.verifyService.ListLogs(c.Request.Context(), limit, offset)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(logs))
}

func (h *Handler) dlUsage(c *gin.Context) {
	logs, err := h.verifyService.DLUsage(c.Request.Context(), c.Param("dl_number"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(logs))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func (h *Handler) saveUpload(c *gin.Context, file *multipart.FileHeader) (string, error) {
	dir := h.config.Upload.TempDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, uuid.NewString()+filepath.Ext(file.Filename))
	if err := c.SaveUploadedFile(file, path); err != nil {
		return "", err
	}
	return path, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(s)
}
