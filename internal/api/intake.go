package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/intake-gateway/intake-gateway/internal/intake"
	"github.com/intake-gateway/intake-gateway/internal/middleware"
)

const (
	defaultMaxUploadSizeMB = 100

	// maxFormMemory is the part of a multipart body held in memory; the rest
	// spills to temporary files.
	maxFormMemory = 32 << 20
)

type intakeHandler struct {
	svc       *intake.Service
	maxBody   int64
	maxMemory int64
}

func newIntakeHandler(svc *intake.Service, maxUploadSizeMB int) *intakeHandler {
	if maxUploadSizeMB <= 0 {
		maxUploadSizeMB = defaultMaxUploadSizeMB
	}
	maxBody := int64(maxUploadSizeMB) << 20
	return &intakeHandler{
		svc:       svc,
		maxBody:   maxBody,
		maxMemory: min(maxBody, maxFormMemory),
	}
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(e *intake.Error) int {
	switch e.Kind {
	case intake.KindBadRequest:
		return http.StatusBadRequest
	case intake.KindForbidden:
		return http.StatusForbidden
	case intake.KindUpstreamBlob:
		if e.Code == intake.CodeDriveAccessDenied {
			return http.StatusForbidden
		}
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// normalize bounds the body and reads it into a Submission tagged with the request id.
func (h *intakeHandler) normalize(c *gin.Context) (*intake.Submission, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)
	sub, err := intake.Normalize(c.Request, h.maxMemory)
	if err != nil {
		return nil, err
	}
	sub.RequestID = c.GetString(middleware.RequestIDKey)
	return sub, nil
}

// recovered turns a panic inside an intake handler into an internal_error response.
func recovered(c *gin.Context, fail func(*intake.Error)) {
	if r := recover(); r != nil {
		slog.Error("intake handler panic",
			"request_id", c.GetString(middleware.RequestIDKey), "path", c.Request.URL.Path, "panic", r)
		fail(&intake.Error{
			Kind:   intake.KindUnexpected,
			Code:   intake.CodeInternal,
			Reason: fmt.Sprintf("%s: %v", intake.CodeInternal, r),
		})
	}
}

// submitTask logs a task description
// POST /api/task
func (h *intakeHandler) submitTask(c *gin.Context) {
	var sub *intake.Submission
	fail := func(e *intake.Error) {
		body := gin.H{"status": "error", "reason": e.Reason}
		if sub != nil {
			body["received"] = sub.Raw
		}
		c.JSON(statusFor(e), body)
	}
	defer recovered(c, fail)

	sub, err := h.normalize(c)
	if err != nil {
		fail(intake.AsError(err))
		return
	}

	res, err := h.svc.SubmitTask(c.Request.Context(), sub)
	if err != nil {
		fail(intake.AsError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "received": res.Received})
}

// submitFile stores an uploaded file, or records a reference to an existing one
// POST /api/upload
func (h *intakeHandler) submitFile(c *gin.Context) {
	fail := func(e *intake.Error) {
		body := gin.H{"ok": false, "error": e.Code, "reason": e.Reason}
		if e.Reference != nil {
			body["drive_link"] = e.Reference.Link
			body["filename"] = e.Filename
			body["file_id"] = e.Reference.ID
		}
		c.JSON(statusFor(e), body)
	}
	defer recovered(c, fail)

	sub, err := h.normalize(c)
	if err != nil {
		fail(intake.AsError(err))
		return
	}

	res, err := h.svc.SubmitFile(c.Request.Context(), sub)
	if err != nil {
		fail(intake.AsError(err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"drive_link": res.Link,
		"filename":   res.Filename,
		"file_id":    res.FileID,
	})
}
