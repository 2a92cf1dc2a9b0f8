package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"evalboard/internal/blob"
	"evalboard/internal/pkg/pdfextract"
	"evalboard/internal/transport/http/response"
)

type UploadHandler struct {
	store *blob.Store
}

type uploadJSONRequest struct {
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
}

func NewUploadHandler(store *blob.Store) *UploadHandler {
	return &UploadHandler{store: store}
}

// Upload has two variants. JSON {filename} allocates a signed upload URL
// the client writes to directly. A multipart "file" field uploads the
// bytes through this server instead. Both return a blob descriptor.
func (h *UploadHandler) Upload(c *gin.Context) {
	if h.store == nil {
		response.Error(c, http.StatusInternalServerError, "blob storage is not configured")
		return
	}

	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		h.uploadMultipart(c)
		return
	}

	var req uploadJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload: filename is required")
		return
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	if !allowedContentType(contentType) {
		response.Error(c, http.StatusBadRequest, "unsupported content type: "+contentType)
		return
	}

	desc, err := h.store.CreateUploadURL(c.Request.Context(), req.Filename, contentType)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to allocate upload target")
		return
	}
	response.OK(c, desc)
}

func (h *UploadHandler) uploadMultipart(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, "no file supplied")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, "file too large (max 20MB)")
		return
	}
	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/pdf"
	}
	if !allowedContentType(contentType) {
		response.Error(c, http.StatusBadRequest, "unsupported content type: "+contentType)
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
		return
	}
	if contentType == "application/pdf" && !pdfextract.IsPDF(data) {
		response.Error(c, http.StatusBadRequest, "file does not look like a PDF")
		return
	}

	desc, err := h.store.Put(c.Request.Context(), file.Filename, data, contentType)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "failed to store uploaded file")
		return
	}
	response.OK(c, desc)
}

func allowedContentType(contentType string) bool {
	return contentType == "application/pdf" ||
		strings.HasPrefix(contentType, "image/") ||
		strings.HasPrefix(contentType, "text/")
}
