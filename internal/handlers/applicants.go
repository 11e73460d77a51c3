package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/auth"
	"github.com/crossfellowship/registrar/internal/media"
)

// sniffLen matches what mimetype inspects by default.
const sniffLen = 3072

// ApplicantService is the reviewer-facing applicant surface. *applicants.Service satisfies it.
type ApplicantService interface {
	Get(ctx context.Context, id int64) (applicants.Applicant, error)
	List(ctx context.Context, f applicants.Filter) (applicants.Page, error)
	Stats(ctx context.Context) (applicants.Stats, error)
	Review(ctx context.Context, id int64, status applicants.Status, reviewerID int64, notes string) (applicants.Applicant, error)
	ExportCSV(ctx context.Context, w io.Writer, f applicants.Filter) error
}

// FileOpener reads stored uploads. media.StorageProvider satisfies it.
type FileOpener interface {
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type ApplicantsHandler struct {
	service ApplicantService
	files   FileOpener
	logger  *slog.Logger
}

type ReviewRequest struct {
	Status string `json:"status" validate:"required,oneof=accepted rejected"`
	Notes  string `json:"notes" validate:"max=2000"`
}

func NewApplicantsHandler(log *slog.Logger, service ApplicantService, files FileOpener) *ApplicantsHandler {
	return &ApplicantsHandler{
		service: service,
		files:   files,
		logger:  log.With(slog.String("handler", "applicants")),
	}
}

func (h *ApplicantsHandler) Register(e *echo.Echo) {
	g := e.Group("/applicants")
	g.GET("", h.List)
	g.GET("/stats", h.Stats)
	g.GET("/export", h.Export)
	g.GET("/file/:folder/:filename", h.File)
	g.GET("/:id", h.Get)
	g.PATCH("/:id/status", h.UpdateStatus)
}

// List godoc
// @Summary List applicants
// @Tags applicants
// @Param type query string false "singer or mission"
// @Param status query string false "pending, accepted or rejected"
// @Param search query string false "Name, phone or church"
// @Param page query int false "1-based page"
// @Param limit query int false "Page size"
// @Success 200 {object} applicants.Page
// @Router /applicants [get]
func (h *ApplicantsHandler) List(c echo.Context) error {
	f := filterFromQuery(c)
	limit := queryInt(c, "limit", applicants.DefaultPageSize)
	page := queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	f.Limit = limit
	f.Offset = (page - 1) * limit
	if raw := c.QueryParam("offset"); raw != "" {
		f.Offset = queryInt(c, "offset", 0)
	}
	result, err := h.service.List(c.Request().Context(), f)
	if err != nil {
		return h.translate(err, "list applicants")
	}
	return c.JSON(http.StatusOK, result)
}

func (h *ApplicantsHandler) Stats(c echo.Context) error {
	stats, err := h.service.Stats(c.Request().Context())
	if err != nil {
		return h.translate(err, "applicant stats")
	}
	return c.JSON(http.StatusOK, stats)
}

// Export streams every matching applicant as CSV.
func (h *ApplicantsHandler) Export(c echo.Context) error {
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.Request().Context(), &buf, filterFromQuery(c)); err != nil {
		return h.translate(err, "export applicants")
	}
	name := fmt.Sprintf("applicants-%s.csv", time.Now().UTC().Format("2006-01-02"))
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

func (h *ApplicantsHandler) Get(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	a, err := h.service.Get(c.Request().Context(), id)
	if err != nil {
		return h.translate(err, "get applicant")
	}
	return c.JSON(http.StatusOK, a)
}

// UpdateStatus godoc
// @Summary Accept or reject an applicant
// @Tags applicants
// @Param id path int true "Applicant ID"
// @Param payload body ReviewRequest true "Decision"
// @Success 200 {object} applicants.Applicant
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /applicants/{id}/status [patch]
func (h *ApplicantsHandler) UpdateStatus(c echo.Context) error {
	id, err := parseIDParam(c)
	if err != nil {
		return err
	}
	claims, err := auth.ClaimsFromContext(c)
	if err != nil {
		return err
	}
	var req ReviewRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	a, err := h.service.Review(c.Request().Context(), id, applicants.Status(req.Status), claims.UserID, strings.TrimSpace(req.Notes))
	if err != nil {
		return h.translate(err, "review applicant")
	}
	return c.JSON(http.StatusOK, a)
}

// File serves a stored photo or audio clip.
func (h *ApplicantsHandler) File(c echo.Context) error {
	folder := c.Param("folder")
	if folder != media.CategoryPhoto.Folder() && folder != media.CategoryAudio.Folder() {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid folder")
	}
	filename := c.Param("filename")
	if filename == "" || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid filename")
	}
	rc, err := h.files.Open(c.Request().Context(), folder+"/"+filename)
	if err != nil {
		if errors.Is(err, media.ErrAssetNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "File not found")
		}
		h.logger.Error("open upload failed", slog.String("folder", folder), slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read file")
	}
	defer rc.Close()

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read file")
	}
	head = head[:n]
	return c.Stream(http.StatusOK, mimetype.Detect(head).String(), io.MultiReader(bytes.NewReader(head), rc))
}

func (h *ApplicantsHandler) translate(err error, op string) error {
	switch {
	case errors.Is(err, applicants.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Applicant not found")
	case errors.Is(err, applicants.ErrAlreadyReviewed):
		return echo.NewHTTPError(http.StatusConflict, "Applicant has already been reviewed")
	case errors.Is(err, applicants.ErrInvalidStatus), errors.Is(err, applicants.ErrInvalidType):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		h.logger.Error(op+" failed", slog.Any("error", err))
		return echo.NewHTTPError(http.StatusInternalServerError, op+" failed")
	}
}

func filterFromQuery(c echo.Context) applicants.Filter {
	return applicants.Filter{
		Type:   applicants.Type(strings.TrimSpace(c.QueryParam("type"))),
		Status: applicants.Status(strings.TrimSpace(c.QueryParam("status"))),
		Search: strings.TrimSpace(c.QueryParam("search")),
	}
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
