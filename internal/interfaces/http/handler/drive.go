package handler

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"

	driveapp "github.com/erp/gestao/internal/application/drive"
	"github.com/erp/gestao/internal/interfaces/http/dto"
	"github.com/erp/gestao/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DriveService is the part of the drive service the handlers use
type DriveService interface {
	Upload(ctx context.Context, tenantID uuid.UUID, req driveapp.UploadRequest) (*driveapp.FileResponse, error)
	List(ctx context.Context, tenantID uuid.UUID, filter driveapp.ListFilter) (*driveapp.FileListResponse, error)
	Download(ctx context.Context, tenantID, id uuid.UUID) (*driveapp.DownloadResponse, error)
	Content(ctx context.Context, tenantID, id uuid.UUID) (*driveapp.ContentResponse, error)
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// DriveHandler serves file uploads and downloads
type DriveHandler struct {
	BaseHandler
	drive DriveService
}

// NewDriveHandler creates a new DriveHandler
func NewDriveHandler(svc DriveService) *DriveHandler {
	return &DriveHandler{drive: svc}
}

// Upload stores the multipart "file" part under the optional "folder" form field
//
// @ID           uploadDriveFile
// @Summary      Upload a file
// @Tags         drive
// @Accept       mpfd
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        file   formData file   true  "File"
// @Param        folder formData string false "Folder"
// @Success      201 {object} dto.Response{data=driveapp.FileResponse}
// @Failure      413 {object} dto.Response
// @Router       /drive/files [post]
func (h *DriveHandler) Upload(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeFileTooLarge, "Arquivo excede o tamanho máximo permitido")
			return
		}
		h.ValidationError(c, []dto.ValidationDetail{{Field: "file", Message: "Arquivo obrigatório"}})
		return
	}
	f, err := fh.Open()
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer f.Close()

	resp, err := h.drive.Upload(c.Request.Context(), tenantID, driveapp.UploadRequest{
		Folder:      c.PostForm("folder"),
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Body:        f,
		UploadedBy:  userID(c),
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, resp)
}

// List returns a page of files plus the tenant's folders
//
// @ID           listDriveFiles
// @Summary      List files
// @Tags         drive
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        params query driveapp.ListFilter false "Filter"
// @Success      200 {object} dto.Response{data=driveapp.FileListResponse}
// @Router       /drive/files [get]
func (h *DriveHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var filter driveapp.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		middleware.HandleBindError(c, err)
		return
	}
	resp, err := h.drive.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, resp)
}

// Download returns a presigned URL, or redirects to it with ?redirect=true
//
// @ID           downloadDriveFile
// @Summary      Get a download URL
// @Tags         drive
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id       path  string true  "File id" format(uuid)
// @Param        redirect query bool   false "Redirect to the URL"
// @Success      200 {object} dto.Response{data=driveapp.DownloadResponse}
// @Success      302
// @Failure      404 {object} dto.Response
// @Router       /drive/files/{id}/download [get]
func (h *DriveHandler) Download(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.drive.Download(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if redirect, _ := strconv.ParseBool(c.Query("redirect")); redirect {
		c.Redirect(http.StatusFound, resp.URL)
		return
	}
	h.Success(c, resp)
}

// Content streams the file bytes through the API, for storage without presigned URLs
//
// @ID           getDriveFileContent
// @Summary      Stream file content
// @Tags         drive
// @Produce      octet-stream
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "File id" format(uuid)
// @Success      200 {file}   binary
// @Failure      404 {object} dto.Response
// @Router       /drive/files/{id}/content [get]
func (h *DriveHandler) Content(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	file, err := h.drive.Content(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	defer file.Body.Close()

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, file.Size, contentType, file.Body, map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": file.Name}),
	})
}

// Delete removes the object and its metadata
//
// @ID           deleteDriveFile
// @Summary      Delete a file
// @Tags         drive
// @Produce      json
// @Security     BearerAuth
// @Param        X-Tenant-ID header string false "Tenant id when no bearer token is sent"
// @Param        id path string true "File id" format(uuid)
// @Success      200 {object} dto.Response
// @Failure      404 {object} dto.Response
// @Router       /drive/files/{id} [delete]
func (h *DriveHandler) Delete(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.pathUUID(c, "id")
	if !ok {
		return
	}
	if err := h.drive.Delete(c.Request.Context(), tenantID, id); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Message(c, nil, "Arquivo excluído")
}
