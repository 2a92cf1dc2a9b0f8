package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"evalboard/internal/app"
	"evalboard/internal/transport/http/response"
)

const maxUploadSize = 20 << 20 // 20 MB

type ExtractHandler struct {
	service *app.ExtractService
}

type extractJSONRequest struct {
	BlobURL  string `json:"blobUrl"`
	Hash     string `json:"hash"`
	FileName string `json:"fileName"`
}

func NewExtractHandler(service *app.ExtractService) *ExtractHandler {
	return &ExtractHandler{service: service}
}

// Extract accepts one of three input shapes: a multipart "file" field with
// raw bytes, JSON {blobUrl, fileName}, or JSON {hash, fileName} for a
// cache-only lookup.
func (h *ExtractHandler) Extract(c *gin.Context) {
	input, ok := h.bindInput(c)
	if !ok {
		return
	}

	result, err := h.service.Handle(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *ExtractHandler) bindInput(c *gin.Context) (app.ExtractInput, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		file, err := c.FormFile("file")
		if err != nil {
			response.Error(c, http.StatusBadRequest, "no file supplied")
			return app.ExtractInput{}, false
		}
		if file.Size > maxUploadSize {
			response.Error(c, http.StatusBadRequest, "file too large (max 20MB)")
			return app.ExtractInput{}, false
		}
		f, err := file.Open()
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
			return app.ExtractInput{}, false
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			response.Error(c, http.StatusInternalServerError, "failed to read uploaded file")
			return app.ExtractInput{}, false
		}
		return app.ExtractInput{
			Data:     data,
			MimeType: file.Header.Get("Content-Type"),
			FileName: file.Filename,
		}, true
	}

	var req extractJSONRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request payload")
		return app.ExtractInput{}, false
	}
	return app.ExtractInput{
		BlobURL:  strings.TrimSpace(req.BlobURL),
		Hash:     strings.TrimSpace(req.Hash),
		FileName: strings.TrimSpace(req.FileName),
	}, true
}

func (h *ExtractHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrMissingInput):
		response.Error(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrNotFound):
		response.Error(c, http.StatusNotFound, "no cached result for this file; upload it again")
	case errors.Is(err, app.ErrOverloaded):
		response.Error(c, http.StatusInternalServerError,
			"The model service is overloaded at the moment. Please try again later.")
	case errors.Is(err, app.ErrLLMConfig):
		response.Error(c, http.StatusInternalServerError, err.Error())
	case errors.Is(err, app.ErrParse):
		response.Error(c, http.StatusInternalServerError, "failed to extract structured data from the PDF")
	default:
		response.Error(c, http.StatusInternalServerError, "failed to process the PDF")
	}
}
