package dto

import "time"

type CourseFileRegisterRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description,omitempty"`
	FileURL        string `json:"file_url"`
	FileType       string `json:"file_type,omitempty"`
	LessonID       int64  `json:"lesson_id,omitempty"`
	ModuleID       int64  `json:"module_id,omitempty"`
	IsWelcomeVideo bool   `json:"is_welcome_video,omitempty"`
}

type CourseFileDTO struct {
	ID             int64     `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	FileName       string    `json:"file_name,omitempty"`
	FileURL        string    `json:"file_url"`
	FileType       string    `json:"file_type,omitempty"`
	FileSize       int64     `json:"file_size,omitempty"`
	LessonID       int64     `json:"lesson_id,omitempty"`
	ModuleID       int64     `json:"module_id,omitempty"`
	IsWelcomeVideo bool      `json:"is_welcome_video"`
	UploadedAt     time.Time `json:"uploaded_at"`
}

type CourseFilesResponse struct {
	Files []CourseFileDTO `json:"files"`
}
