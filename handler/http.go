package handler

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"material-pipeline/constant"
	"material-pipeline/dto"
	"material-pipeline/pkg/apperr"
	"material-pipeline/pkg/storage"
	"material-pipeline/service"
)

const (
	headerRole = "X-User-Role"
	headerUser = "X-User-Id"

	maxMultipartMemory = 32 << 20
)

type HTTP struct {
	generation service.GenerationService
	uploads    service.UploadService
	// local is set when files may be served from the local provider.
	local *storage.Local
}

func NewHTTP(generation service.GenerationService, uploads service.UploadService, local *storage.Local) *HTTP {
	return &HTTP{generation: generation, uploads: uploads, local: local}
}

func (h *HTTP) Register(r gin.IRouter) {
	r.POST("/transcripts/:id/generate", h.triggerGeneration)

	r.GET("/materials/:id", h.getMaterial)
	r.PATCH("/materials/:id", h.updateMaterial)
	r.POST("/materials/:id/publish", h.publish)
	r.DELETE("/materials/:id", h.deleteMaterial)
	r.GET("/courses/:id/materials", h.listMaterials)

	r.POST("/courses/:id/files", h.uploadFiles)
	r.GET("/courses/:id/files", h.listFiles)
	r.GET("/files/:id/url", h.accessURL)
	r.GET("/files/:id/stream", h.streamFile)
	r.DELETE("/files/:id", h.deleteFile)

	if h.local != nil {
		r.GET("/storage/local/*ref", h.serveLocal)
	}
}

func (h *HTTP) triggerGeneration(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	record, err := h.generation.Trigger(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, record)
}

func (h *HTTP) getMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	record, err := h.generation.Get(c.Request.Context(), id, role(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTP) updateMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var update dto.MaterialUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		writeError(c, apperr.Validation("invalid body: %v", err))
		return
	}
	record, err := h.generation.Update(c.Request.Context(), id, update)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTP) publish(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	record, err := h.generation.Publish(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *HTTP) deleteMaterial(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.generation.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *HTTP) listMaterials(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	records, err := h.generation.ListForCourse(c.Request.Context(), id, role(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

func (h *HTTP) uploadFiles(c *gin.Context) {
	courseID, ok := pathID(c)
	if !ok {
		return
	}
	uploaderID, err := uuid.Parse(c.GetHeader(headerUser))
	if err != nil {
		writeError(c, apperr.Validation("missing or invalid %s header", headerUser))
		return
	}
	if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
		writeError(c, apperr.Validation("invalid multipart body: %v", err))
		return
	}
	form := c.Request.MultipartForm
	headers := form.File["files[]"]
	if len(headers) == 0 {
		headers = form.File["files"]
	}

	files := make([]storage.File, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			closeAll(files)
			writeError(c, apperr.Validation("read %q: %v", fh.Filename, err))
			return
		}
		files = append(files, storage.File{
			OriginalName: fh.Filename,
			Mime:         fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Content:      f,
		})
	}
	defer closeAll(files)

	meta := dto.UploadMeta{
		Title:       optionalValue(form, "title"),
		Description: optionalValue(form, "description"),
	}
	stored, err := h.uploads.Upload(c.Request.Context(), courseID, uploaderID, files, meta)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, stored)
}

func (h *HTTP) listFiles(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	files, err := h.uploads.ListCourseFiles(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, files)
}

func (h *HTTP) accessURL(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	url, err := h.uploads.GetAccessURL(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.AccessURLResponse{URL: url})
}

func (h *HTTP) streamFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	stream, err := h.uploads.StreamFile(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	writeStream(c, stream)
}

func (h *HTTP) deleteFile(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := h.uploads.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// serveLocal streams a file from the local provider after checking the
// signature minted by its AccessURL.
func (h *HTTP) serveLocal(c *gin.Context) {
	ref := strings.TrimPrefix(c.Param("ref"), "/")
	if !h.local.Verify(ref, c.Query("expires"), c.Query("signature")) {
		c.JSON(http.StatusForbidden, dto.ErrorResponse{Error: "invalid or expired link", Kind: "forbidden"})
		return
	}
	stream, err := h.local.Open(c.Request.Context(), ref)
	if errors.Is(err, storage.ErrObjectNotFound) {
		writeError(c, apperr.NotFound(err, "file not found"))
		return
	}
	if err != nil {
		writeError(c, apperr.Storage(err, "open %s", ref))
		return
	}
	writeStream(c, stream)
}

func writeStream(c *gin.Context, stream *storage.FileStream) {
	defer stream.Stream.Close()
	disposition := mime.FormatMediaType("attachment", map[string]string{"filename": stream.Filename})
	c.DataFromReader(http.StatusOK, stream.Size, stream.Mime, stream.Stream, map[string]string{
		"Content-Disposition": disposition,
	})
}

func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := statusFor(kind)
	if status >= http.StatusInternalServerError {
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Stack().Str("path", c.FullPath()).Msg("request failed")
	}

	var batchErr *service.BatchUploadError
	if errors.As(err, &batchErr) {
		c.JSON(status, dto.BatchUploadErrorResponse{
			Error:      err.Error(),
			Kind:       string(kind),
			FailedFile: batchErr.FailedFile,
			Stored:     batchErr.Stored,
		})
		return
	}
	c.JSON(status, dto.ErrorResponse{Error: err.Error(), Kind: string(kind)})
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindGenerationStep, apperr.KindStorage:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// role defaults to student, the most restricted view.
func role(c *gin.Context) constant.Role {
	switch r := constant.Role(strings.ToLower(c.GetHeader(headerRole))); r {
	case constant.RoleTeacher, constant.RoleAdmin:
		return r
	default:
		return constant.RoleStudent
	}
}

func pathID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, apperr.Validation("invalid id %q", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

func optionalValue(form *multipart.Form, key string) *string {
	values := form.Value[key]
	if len(values) == 0 || strings.TrimSpace(values[0]) == "" {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

func closeAll(files []storage.File) {
	for _, f := range files {
		if closer, ok := f.Content.(multipart.File); ok {
			closer.Close()
		}
	}
}
