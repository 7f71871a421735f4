package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docuchat/internal/access"
	"docuchat/internal/app"
	"docuchat/internal/transport/http/response"
)

const maxUploadBytes = 16 << 20 // 16 MiB

type DocumentHandler struct {
	documentService *app.DocumentService
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// Upload accepts a multipart PDF plus a confidentiality_level form field.
func (h *DocumentHandler) Upload(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file is required")
		return
	}
	if fileHeader.Size > maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "file too large")
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "only PDF files are supported")
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "could not read file")
		return
	}
	defer f.Close()
	pdfBytes, err := io.ReadAll(io.LimitReader(f, maxUploadBytes+1))
	if err != nil || len(pdfBytes) > maxUploadBytes {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "could not read file")
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), app.UploadInput{
		Username: id.Username,
		Role:     id.Role,
		Filename: fileHeader.Filename,
		Level:    c.PostForm("confidentiality_level"),
		PDF:      pdfBytes,
	})
	if err != nil {
		switch {
		case errors.Is(err, access.ErrInvalidLevel):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidLevel, err.Error())
		case errors.Is(err, access.ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRole, err.Error())
		case errors.Is(err, app.ErrUploadForbidden):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, app.ErrEmptyDocument):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrIngestEnqueue):
			response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, doc)
}

// Delete removes a document and its chunks. Allowed for the uploader or
// an admin; documents outside the caller's levels read as not found.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || docID == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), id.Username, id.Role, uint(docID)); err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentMissing):
			response.Error(c, http.StatusNotFound, response.CodeNotFound, err.Error())
		case errors.Is(err, app.ErrDeleteForbidden):
			response.Error(c, http.StatusForbidden, response.CodeForbidden, err.Error())
		case errors.Is(err, app.ErrInvalidInput), errors.Is(err, access.ErrInvalidLevel):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, access.ErrInvalidRole):
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRole, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		}
		return
	}
	response.OK(c, gin.H{"deleted_document_id": uint(docID)})
}

// List shows only the documents the caller's role may retrieve.
func (h *DocumentHandler) List(c *gin.Context) {
	id, ok := identityFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	docs, err := h.documentService.List(id.Role)
	if err != nil {
		if errors.Is(err, access.ErrInvalidRole) {
			response.Error(c, http.StatusBadRequest, response.CodeInvalidRole, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}
