// handlers_files.go - Export file operation handlers
package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/plc-analyzer/backend/internal/models"
	"github.com/plc-analyzer/backend/internal/storage"
)

// FileHandlerImpl implements the FileHandler interface
type FileHandlerImpl struct {
	store         storage.Store
	sessionMgr    SessionManager
	maxUploadSize int64
	allowDelete   bool
}

// NewFileHandler creates a new file handler instance
func NewFileHandler(store storage.Store, sessionMgr SessionManager, maxUploadSize int64, allowDelete bool) FileHandler {
	return &FileHandlerImpl{
		store:         store,
		sessionMgr:    sessionMgr,
		maxUploadSize: maxUploadSize,
		allowDelete:   allowDelete,
	}
}

// HandleUploadFile accepts a multipart upload with fields file, projectId,
// folder and an optional kind.
func (h *FileHandlerImpl) HandleUploadFile(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return NewValidationError("file")
	}
	if h.maxUploadSize > 0 && fh.Size > h.maxUploadSize {
		return &APIError{
			Status:  http.StatusRequestEntityTooLarge,
			Code:    "UPLOAD_TOO_LARGE",
			Message: fmt.Sprintf("upload of %d bytes exceeds limit of %d", fh.Size, h.maxUploadSize),
		}
	}

	u := storage.Upload{
		Name:      fh.Filename,
		ProjectID: c.FormValue("projectId"),
		Folder:    c.FormValue("folder"),
		Kind:      models.FileKind(strings.ToLower(c.FormValue("kind"))),
	}
	if u.Kind != "" && u.Kind != models.KindL5X && u.Kind != models.KindL5K {
		return NewBadRequestError(fmt.Sprintf("unsupported kind %q", u.Kind), nil)
	}

	src, err := fh.Open()
	if err != nil {
		return NewBadRequestError("failed to read upload", err)
	}
	defer src.Close()

	info, err := h.store.Save(u, src)
	if err != nil {
		return FromError(err, "upload", fh.Filename)
	}
	return c.JSON(http.StatusCreated, info)
}

// HandleListFiles lists uploads, optionally filtered by projectId and folder
func (h *FileHandlerImpl) HandleListFiles(c echo.Context) error {
	projectID := c.QueryParam("projectId")
	var (
		files []*models.FileInfo
		err   error
	)
	if folder := c.QueryParam("folder"); folder != "" {
		if projectID == "" {
			return NewValidationError("projectId")
		}
		files, err = h.store.ListFolder(projectID, folder)
	} else {
		files, err = h.store.List(projectID)
	}
	if err != nil {
		return NewInternalError("failed to list files", err)
	}
	return c.JSON(http.StatusOK, files)
}

// HandleGetFile returns metadata for a single file
func (h *FileHandlerImpl) HandleGetFile(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return FromError(err, "file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleDeleteFile deletes a file and every stored version of it
func (h *FileHandlerImpl) HandleDeleteFile(c echo.Context) error {
	if !h.allowDelete {
		return &APIError{Status: http.StatusForbidden, Code: "FORBIDDEN", Message: "file deletion is disabled"}
	}
	id := c.Param("id")
	if err := h.sessionMgr.DeleteFile(id); err != nil {
		return FromError(err, "file", id)
	}
	return c.NoContent(http.StatusNoContent)
}

// HandleRenameFile renames a file
func (h *FileHandlerImpl) HandleRenameFile(c echo.Context) error {
	id := c.Param("id")
	var req renameFileRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.Name) == "" {
		return NewValidationError("name")
	}

	info, err := h.store.Rename(id, req.Name)
	if err != nil {
		return FromError(err, "file", id)
	}
	return c.JSON(http.StatusOK, info)
}

// HandleListVersions lists the published versions of a file, oldest first
func (h *FileHandlerImpl) HandleListVersions(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return FromError(err, "file", id)
	}
	return c.JSON(http.StatusOK, versionsResponse{
		FileID:           info.ID,
		Versions:         info.Versions,
		CurrentVersionID: info.CurrentVersionID,
		Status:           info.ParsingStatus,
	})
}

// HandleCurrentSnapshot returns the current snapshot of a file. A file that
// has no parsed version yet yields an empty result with its status.
func (h *FileHandlerImpl) HandleCurrentSnapshot(c echo.Context) error {
	id := c.Param("id")
	info, err := h.store.Get(id)
	if err != nil {
		return FromError(err, "file", id)
	}
	resp := currentSnapshotResponse{Status: info.ParsingStatus, Error: info.ParseError}
	if info.CurrentVersionID == "" {
		return c.JSON(http.StatusOK, resp)
	}

	snap, err := h.sessionMgr.Load(c.Request().Context(), info.CurrentVersionID)
	if errors.Is(err, models.ErrSnapshotNotFound) {
		return c.JSON(http.StatusOK, resp)
	}
	if err != nil {
		return FromError(err, "snapshot", info.CurrentVersionID)
	}
	resp.Snapshot = snap
	return c.JSON(http.StatusOK, resp)
}

// Request/Response types

type renameFileRequest struct {
	Name string `json:"name"`
}

type versionsResponse struct {
	FileID           string               `json:"fileId"`
	Versions         []string             `json:"versions"`
	CurrentVersionID string               `json:"currentVersionId,omitempty"`
	Status           models.ParsingStatus `json:"status"`
}

type currentSnapshotResponse struct {
	Status   models.ParsingStatus `json:"status"`
	Error    string               `json:"error,omitempty"`
	Snapshot *models.Snapshot     `json:"snapshot"`
}
