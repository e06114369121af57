package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	filesvc "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/services/files"
	"github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/dto"
	httperrors "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/transport/http/errors"
)

const maxCourseFileUploadSize = 500 << 20 // 500 MiB, lesson videos get big

type FilesHandler struct {
	files *filesvc.Service
}

func NewFilesHandler(files *filesvc.Service) *FilesHandler {
	return &FilesHandler{files: files}
}

func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.files == nil {
		writeInternal(w, "FILES_SERVICE_UNAVAILABLE", "files service is unavailable")
		return
	}

	files, err := h.files.List(r.Context())
	if err != nil {
		writeInternal(w, "INTERNAL_ERROR", "failed to list course files")
		return
	}

	resp := dto.CourseFilesResponse{Files: make([]dto.CourseFileDTO, 0, len(files))}
	for _, file := range files {
		resp.Files = append(resp.Files, courseFileDTO(file))
	}
	httperrors.Write(w, http.StatusOK, resp)
}

func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.files == nil {
		writeInternal(w, "FILES_SERVICE_UNAVAILABLE", "files service is unavailable")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCourseFileUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "file is required")
		return
	}
	defer file.Close()

	if header == nil || header.Size <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "file is empty")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	uploaded, err := h.files.Upload(r.Context(), filesvc.UploadInput{
		Title:          r.FormValue("title"),
		Description:    r.FormValue("description"),
		FileName:       header.Filename,
		ContentType:    contentType,
		Body:           file,
		Size:           header.Size,
		LessonID:       optionalFormInt64(r, "lesson_id"),
		ModuleID:       optionalFormInt64(r, "module_id"),
		IsWelcomeVideo: r.FormValue("is_welcome_video") == "true",
	})
	if err != nil {
		handleFilesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, courseFileDTO(uploaded))
}

// Register records an externally hosted file without uploading anything.
func (h *FilesHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.files == nil {
		writeInternal(w, "FILES_SERVICE_UNAVAILABLE", "files service is unavailable")
		return
	}

	var req dto.CourseFileRegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid request body")
		return
	}

	registered, err := h.files.Register(r.Context(), filesvc.RegisterInput{
		Title:          req.Title,
		Description:    req.Description,
		FileURL:        req.FileURL,
		FileType:       req.FileType,
		LessonID:       optionalInt64(req.LessonID),
		ModuleID:       optionalInt64(req.ModuleID),
		IsWelcomeVideo: req.IsWelcomeVideo,
	})
	if err != nil {
		handleFilesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusCreated, courseFileDTO(registered))
}

func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !requireAdmin(w, r) {
		return
	}
	if h.files == nil {
		writeInternal(w, "FILES_SERVICE_UNAVAILABLE", "files service is unavailable")
		return
	}

	fileID, err := strconv.ParseInt(chi.URLParam(r, "file_id"), 10, 64)
	if err != nil || fileID <= 0 {
		writeBadRequest(w, "VALIDATION_ERROR", "invalid file id")
		return
	}

	if err := h.files.Delete(r.Context(), fileID); err != nil {
		handleFilesError(w, err)
		return
	}

	httperrors.Write(w, http.StatusOK, map[string]bool{"ok": true})
}

func handleFilesError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, filesvc.ErrValidation):
		writeBadRequest(w, "VALIDATION_ERROR", "invalid course file request")
	case errors.Is(err, filesvc.ErrFileNotFound):
		writeNotFound(w, "FILE_NOT_FOUND", "course file not found")
	default:
		writeInternal(w, "INTERNAL_ERROR", "course files operation failed")
	}
}

func courseFileDTO(file filesvc.File) dto.CourseFileDTO {
	out := dto.CourseFileDTO{
		ID:             file.ID,
		Title:          file.Title,
		Description:    file.Description,
		FileName:       file.FileName,
		FileURL:        file.FileURL,
		FileType:       file.FileType,
		FileSize:       file.FileSize,
		IsWelcomeVideo: file.IsWelcomeVideo,
		UploadedAt:     file.UploadedAt,
	}
	if file.LessonID != nil {
		out.LessonID = *file.LessonID
	}
	if file.ModuleID != nil {
		out.ModuleID = *file.ModuleID
	}
	return out
}

func optionalFormInt64(r *http.Request, field string) *int64 {
	raw := r.FormValue(field)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || value <= 0 {
		return nil
	}
	return &value
}

func optionalInt64(value int64) *int64 {
	if value <= 0 {
		return nil
	}
	return &value
}
