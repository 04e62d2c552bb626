package handler

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ifl-de/intake-api/internal/core/domain"
	"github.com/ifl-de/intake-api/internal/core/ports"
)

// filesField is the multipart field carrying the submitted files.
const filesField = "files"

// DocumentHandler handles HTTP requests for the document pipeline.
type DocumentHandler struct {
	service     ports.SubmissionService
	maxFileSize int64
}

// NewDocumentHandler builds the handler. maxFileSize bounds how much of
// each part is read into memory; the service applies the actual limit.
func NewDocumentHandler(service ports.SubmissionService, maxFileSize int64) *DocumentHandler {
	return &DocumentHandler{service: service, maxFileSize: maxFileSize}
}

// Submit stores a batch of files for the calling applicant.
//
// @Summary      Submit documents
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     SessionCookie
// @Param        files  formData  file  true  "Documents (repeatable)"
// @Success      201    {object}  documentListResponse
// @Failure      413    {object}  map[string]any
// @Failure      422    {object}  map[string]any
// @Failure      503    {object}  map[string]any
// @Router       /api/documents [post]
func (h *DocumentHandler) Submit(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return echo.ErrStatusRequestEntityTooLarge
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "expected multipart/form-data with a files field")
	}
	defer func() { _ = form.RemoveAll() }()

	uploads := make([]domain.FileUpload, 0, len(form.File[filesField]))
	for _, fh := range form.File[filesField] {
		upload, err := h.readPart(fh)
		if err != nil {
			return err
		}
		uploads = append(uploads, upload)
	}

	docs, err := h.service.Submit(c.Request().Context(), session, uploads)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toDocumentListResponse(docs))
}

// readPart loads one part, reading at most one byte past the size limit so
// the service can reject oversized files without buffering them whole.
func (h *DocumentHandler) readPart(fh *multipart.FileHeader) (domain.FileUpload, error) {
	f, err := fh.Open()
	if err != nil {
		return domain.FileUpload{}, fmt.Errorf("open part %q: %w", fh.Filename, err)
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, h.maxFileSize+1))
	if err != nil {
		return domain.FileUpload{}, fmt.Errorf("read part %q: %w", fh.Filename, err)
	}
	return domain.FileUpload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Content:     content,
	}, nil
}

// List returns documents visible to the caller. Staff may narrow the list
// with ?owner=<actor id>.
//
// @Summary      List documents
// @Tags         documents
// @Produce      json
// @Security     SessionCookie
// @Param        owner  query     string  false  "Owner actor id"
// @Success      200    {object}  documentListResponse
// @Failure      403    {object}  map[string]any
// @Router       /api/documents [get]
func (h *DocumentHandler) List(c echo.Context) error {
	return h.fetch(c, c.QueryParam("owner"))
}

// ListForUser returns the documents owned by :userId.
func (h *DocumentHandler) ListForUser(c echo.Context) error {
	return h.fetch(c, c.Param("userId"))
}

func (h *DocumentHandler) fetch(c echo.Context, target string) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	docs, err := h.service.Fetch(c.Request().Context(), session, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDocumentListResponse(docs))
}

// ReviewQueue lists documents by review status for staff. Defaults to
// pending.
func (h *DocumentHandler) ReviewQueue(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var status domain.ReviewStatus
	if raw := c.QueryParam("status"); raw != "" {
		parsed, ok := domain.ParseReviewStatus(raw)
		if !ok {
			return domain.Invalid("unknown status %q", raw)
		}
		status = parsed
	}

	docs, err := h.service.ListForReview(c.Request().Context(), session, status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDocumentListResponse(docs))
}

// Download streams a document's contents as an attachment.
//
// @Summary      Download a document
// @Tags         documents
// @Produce      octet-stream
// @Security     SessionCookie
// @Param        id   path  string  true  "Document id"
// @Success      200
// @Failure      403  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /api/documents/{id}/content [get]
func (h *DocumentHandler) Download(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	doc, body, err := h.service.Open(c.Request().Context(), session, c.Param("id"))
	if err != nil {
		return err
	}
	defer body.Close()

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": doc.Filename}))
	header.Set("X-Content-Type-Options", "nosniff")
	return c.Stream(http.StatusOK, doc.ContentType, body)
}

// Delete removes a document. Owners and staff only.
//
// @Summary      Delete a document
// @Tags         documents
// @Security     SessionCookie
// @Param        id   path  string  true  "Document id"
// @Success      204
// @Failure      404  {object}  map[string]any
// @Failure      503  {object}  map[string]any  "partial delete, retry"
// @Router       /api/documents/{id} [delete]
func (h *DocumentHandler) Delete(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}
	if err := h.service.Delete(c.Request().Context(), session, c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// Review records a staff decision on a pending document.
//
// @Summary      Review a document
// @Tags         documents
// @Accept       json
// @Produce      json
// @Security     SessionCookie
// @Param        id    path      string         true  "Document id"
// @Param        body  body      reviewRequest  true  "Decision"
// @Success      200   {object}  documentResponse
// @Failure      409   {object}  map[string]any
// @Router       /api/documents/{id}/review [patch]
func (h *DocumentHandler) Review(c echo.Context) error {
	session, err := sessionFrom(c)
	if err != nil {
		return err
	}

	var req reviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	doc, err := h.service.UpdateReviewStatus(c.Request().Context(), session, c.Param("id"), domain.ReviewStatus(req.Status), req.Note)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toDocumentResponse(doc))
}
