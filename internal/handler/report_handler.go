package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/SwiftTim/hub2/internal/middleware"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/SwiftTim/hub2/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MaxInspectUpload bounds PDFs accepted by the inspect endpoint.
const MaxInspectUpload = 20 << 20

// ReportHandler serves report generation and verification.
type ReportHandler struct {
	reports *service.ReportService
	log     zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(reports *service.ReportService, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		reports: reports,
		log:     log.With().Str("component", "report_handler").Logger(),
	}
}

type reportURI struct {
	Type string `uri:"type" binding:"required,report_type"`
}

type reportQuery struct {
	UserID string `form:"user_id" binding:"omitempty,uuid"`
}

type verifyQuery struct {
	Sig string `form:"sig" binding:"omitempty,max=128"`
}

// Generate godoc
// GET /api/v1/reports/:type
// Staff may pass ?user_id= to generate a report for a student.
func (h *ReportHandler) Generate(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var uri reportURI
	if fields := validator.BindURI(c, &uri); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidReportType, fields)
		return
	}
	var q reportQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	userID := claims.UserID
	if q.UserID != "" {
		if !claims.Role.Staff() {
			response.Fail(c, http.StatusForbidden, response.ErrStaffAccessOnly)
			return
		}
		userID = uuid.MustParse(q.UserID)
	}

	doc, err := h.reports.Generate(c.Request.Context(), userID, model.ReportType(uri.Type))
	if err != nil {
		if errors.Is(err, service.ErrInvalidReportType) {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidReportType)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrReportGenerationFailed)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	c.Header("Content-Length", strconv.Itoa(len(doc.PDF)))
	c.Header("X-Document-ID", doc.DocumentID.String())
	c.Header("X-Watermark-Version", doc.Version)
	c.Data(http.StatusOK, "application/pdf", doc.PDF)
}

// Verify godoc
// GET /api/v1/reports/verify/:document_id?sig=
// Responds with the bare verification object rather than the envelope.
func (h *ReportHandler) Verify(c *gin.Context) {
	var q verifyQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		c.JSON(http.StatusBadRequest, service.Verification{Error: service.VerdictInvalidSignature})
		return
	}

	v, err := h.reports.Verify(c.Request.Context(), c.Param("document_id"), q.Sig)
	if err != nil {
		h.log.Error().Err(err).Str("document_id", c.Param("document_id")).Msg("Verification lookup failed")
		c.JSON(http.StatusInternalServerError, service.Verification{Error: "Verification failed"})
		return
	}

	switch {
	case v.Valid:
		c.JSON(http.StatusOK, v)
	case v.Error == service.VerdictNotFound:
		c.JSON(http.StatusNotFound, v)
	default:
		c.JSON(http.StatusBadRequest, v)
	}
}

// Inspect godoc
// POST /api/v1/reports/inspect (multipart field "file")
func (h *ReportHandler) Inspect(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	if fh.Size > MaxInspectUpload {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrFileRequired)
		return
	}
	defer f.Close()

	pdf, err := io.ReadAll(io.LimitReader(f, MaxInspectUpload+1))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}
	if len(pdf) > MaxInspectUpload {
		response.Fail(c, http.StatusRequestEntityTooLarge, response.ErrFileTooLarge)
		return
	}

	in, err := h.reports.Inspect(c.Request.Context(), pdf)
	if err != nil {
		h.log.Error().Err(err).Msg("Inspect failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}
	response.Success(c, http.StatusOK, in)
}
