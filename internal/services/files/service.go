package files

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	pgrepo "github.com/v89661655608-ship-it/bankruptcy-course-creation/internal/repo/postgres"
)

var (
	ErrValidation   = errors.New("validation error")
	ErrFileNotFound = errors.New("course file not found")
)

type Store interface {
	Insert(ctx context.Context, record pgrepo.CourseFileRecord) (pgrepo.CourseFileRecord, error)
	List(ctx context.Context) ([]pgrepo.CourseFileRecord, error)
	FindByID(ctx context.Context, fileID int64) (pgrepo.CourseFileRecord, error)
	Delete(ctx context.Context, fileID int64) error
}

type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
}

type Service struct {
	store   Store
	storage ObjectStorage
}

type File struct {
	ID             int64
	Title          string
	Description    string
	FileName       string
	FileURL        string
	FileType       string
	FileSize       int64
	LessonID       *int64
	ModuleID       *int64
	IsWelcomeVideo bool
	UploadedAt     time.Time
}

type UploadInput struct {
	Title          string
	Description    string
	FileName       string
	ContentType    string
	Body           io.Reader
	Size           int64
	LessonID       *int64
	ModuleID       *int64
	IsWelcomeVideo bool
}

type RegisterInput struct {
	Title          string
	Description    string
	FileName       string
	FileURL        string
	FileType       string
	FileSize       int64
	LessonID       *int64
	ModuleID       *int64
	IsWelcomeVideo bool
}

func NewService(store Store, storage ObjectStorage) *Service {
	return &Service{store: store, storage: storage}
}

// Upload stores a course material in object storage and records it. The
// object is removed again if the metadata row cannot be written.
func (s *Service) Upload(ctx context.Context, in UploadInput) (File, error) {
	if s.store == nil || s.storage == nil {
		return File{}, fmt.Errorf("files dependencies are not configured")
	}
	if in.Body == nil || in.Size <= 0 || strings.TrimSpace(in.FileName) == "" {
		return File{}, ErrValidation
	}

	if err := s.storage.EnsureBucket(ctx); err != nil {
		return File{}, fmt.Errorf("ensure bucket: %w", err)
	}

	objectKey, err := buildObjectKey(in.FileName)
	if err != nil {
		return File{}, fmt.Errorf("build object key: %w", err)
	}

	contentType := strings.TrimSpace(in.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	fileURL, err := s.storage.Put(ctx, objectKey, in.Body, in.Size, contentType)
	if err != nil {
		return File{}, fmt.Errorf("put object: %w", err)
	}

	record, err := s.store.Insert(ctx, pgrepo.CourseFileRecord{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		FileName:       strings.TrimSpace(in.FileName),
		FileURL:        fileURL,
		FileType:       contentType,
		FileSize:       in.Size,
		LessonID:       in.LessonID,
		ModuleID:       in.ModuleID,
		IsWelcomeVideo: in.IsWelcomeVideo,
	})
	if err != nil {
		_ = s.storage.Delete(ctx, objectKey)
		return File{}, fmt.Errorf("insert course file record: %w", err)
	}

	return fileFromRecord(record), nil
}

// Register records a file hosted elsewhere (an external video URL, for
// example) without touching object storage.
func (s *Service) Register(ctx context.Context, in RegisterInput) (File, error) {
	if s.store == nil {
		return File{}, fmt.Errorf("files dependencies are not configured")
	}
	if strings.TrimSpace(in.FileURL) == "" {
		return File{}, ErrValidation
	}

	record, err := s.store.Insert(ctx, pgrepo.CourseFileRecord{
		Title:          strings.TrimSpace(in.Title),
		Description:    strings.TrimSpace(in.Description),
		FileName:       strings.TrimSpace(in.FileName),
		FileURL:        strings.TrimSpace(in.FileURL),
		FileType:       strings.TrimSpace(in.FileType),
		FileSize:       in.FileSize,
		LessonID:       in.LessonID,
		ModuleID:       in.ModuleID,
		IsWelcomeVideo: in.IsWelcomeVideo,
	})
	if err != nil {
		return File{}, fmt.Errorf("insert course file record: %w", err)
	}

	return fileFromRecord(record), nil
}

func (s *Service) List(ctx context.Context) ([]File, error) {
	if s.store == nil {
		return nil, fmt.Errorf("files dependencies are not configured")
	}

	records, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	files := make([]File, 0, len(records))
	for _, record := range records {
		files = append(files, fileFromRecord(record))
	}
	return files, nil
}

// Delete removes the metadata row and, for objects this service uploaded,
// the stored object as well. External URLs are left alone.
func (s *Service) Delete(ctx context.Context, fileID int64) error {
	if s.store == nil {
		return fmt.Errorf("files dependencies are not configured")
	}
	if fileID <= 0 {
		return ErrValidation
	}

	record, err := s.store.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseFileNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if err := s.store.Delete(ctx, fileID); err != nil {
		if errors.Is(err, pgrepo.ErrCourseFileNotFound) {
			return ErrFileNotFound
		}
		return err
	}

	if s.storage != nil {
		if key, ok := objectKeyFromURL(record.FileURL); ok {
			_ = s.storage.Delete(ctx, key)
		}
	}

	return nil
}

func buildObjectKey(fileName string) (string, error) {
	rnd := make([]byte, 8)
	if _, err := rand.Read(rnd); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(strings.TrimSpace(fileName)))
	if ext == "" {
		ext = ".bin"
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("course/%s_%s%s", stamp, hex.EncodeToString(rnd), ext), nil
}

func fileFromRecord(record pgrepo.CourseFileRecord) File {
	return File{
		ID:             record.ID,
		Title:          record.Title,
		Description:    record.Description,
		FileName:       record.FileName,
		FileURL:        record.FileURL,
		FileType:       record.FileType,
		FileSize:       record.FileSize,
		LessonID:       record.LessonID,
		ModuleID:       record.ModuleID,
		IsWelcomeVideo: record.IsWelcomeVideo,
		UploadedAt:     record.UploadedAt,
	}
}

// objectKeyFromURL recovers the storage key from URLs produced by Upload.
func objectKeyFromURL(fileURL string) (string, bool) {
	idx := strings.Index(fileURL, "/course/")
	if idx < 0 {
		return "", false
	}
	return fileURL[idx+1:], true
}
