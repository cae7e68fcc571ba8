package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hazeltrade/internal/middleware"
	"hazeltrade/internal/service"
	"hazeltrade/pkg/response"
)

type DocumentHandler struct {
	documentService service.DocumentService
	authService     service.AuthService
}

// NewDocumentHandler sets up the routing dependencies for document endpoints
func NewDocumentHandler(documentService service.DocumentService, authService service.AuthService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService, authService: authService}
}

// RegisterRoutes binds the endpoints to the gin Engine or RouterGroup
func (h *DocumentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/upload", middleware.RequireAuth(), h.Upload)
	router.GET("/deals/:id/documents", middleware.RequireAuth(), h.ListDealDocuments)

	documents := router.Group("/documents", middleware.RequireAuth())
	{
		documents.GET("/:id", h.GetDocument)
		documents.DELETE("/:id", h.DeleteDocument)
	}
}

// Upload handles POST /upload (multipart) for deal documents
// @Summary      Upload a document
// @Description  Accepts pdf/doc/docx/png/jpeg up to 10MB. POF/POP uploads trigger party verification; step uploads record the caller's approval once verified.
// @Tags         documents
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file           formData  file    true   "Document file"
// @Param        deal_id        formData  string  true   "Deal ID"
// @Param        folder         formData  string  true   "AGREEMENTS, POF, POP, CONTRACTS, INSPECTION or PAYMENT"
// @Param        document_type  formData  string  false  "Document type label"
// @Param        step_number    formData  int     false  "Workflow step the upload belongs to (0 for verification uploads)"
// @Success      201  {object}  response.Response{data=model.Document}
// @Failure      400  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /upload [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}

	dealID, err := uuid.Parse(c.PostForm("deal_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid deal_id"))
		return
	}
	stepNumber := 0
	if raw := c.PostForm("step_number"); raw != "" {
		stepNumber, err = strconv.Atoi(raw)
		if err != nil || stepNumber < 0 {
			c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid step_number"))
			return
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Missing file"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read file"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Failed to read file"))
		return
	}

	doc, err := h.documentService.Upload(c.Request.Context(), user, service.UploadRequest{
		DealID:       dealID,
		Folder:       c.PostForm("folder"),
		DocumentType: c.PostForm("document_type"),
		StepNumber:   stepNumber,
		Filename:     fileHeader.Filename,
		ContentType:  fileHeader.Header.Get("Content-Type"),
		Data:         data,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, doc))
}

// ListDealDocuments handles GET /deals/:id/documents
// @Summary      List deal documents
// @Description  Returns the deal's documents the caller's role is allowed to see, optionally filtered by folder
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id      path      string  true   "Deal ID"
// @Param        folder  query     string  false  "Filter by folder"
// @Success      200     {object}  response.Response{data=[]model.Document}
// @Failure      404     {object}  response.Response
// @Router       /deals/{id}/documents [get]
func (h *DocumentHandler) ListDealDocuments(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}
	dealID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid deal id"))
		return
	}

	docs, err := h.documentService.ListByDeal(c.Request.Context(), user, dealID, c.Query("folder"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, docs))
}

// GetDocument handles GET /documents/:id
// @Summary      Get a document
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response{data=model.Document}
// @Failure      404  {object}  response.Response
// @Router       /documents/{id} [get]
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid document id"))
		return
	}

	doc, err := h.documentService.Get(c.Request.Context(), user, docID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, doc))
}

// DeleteDocument handles DELETE /documents/:id
// @Summary      Delete a document
// @Description  Removes an unverified document; only its uploader may delete it
// @Tags         documents
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Document ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /documents/{id} [delete]
func (h *DocumentHandler) DeleteDocument(c *gin.Context) {
	user, ok := loadUser(c, h.authService)
	if !ok {
		return
	}
	docID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid document id"))
		return
	}

	if err := h.documentService.Delete(c.Request.Context(), user, docID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "Document deleted"}))
}
