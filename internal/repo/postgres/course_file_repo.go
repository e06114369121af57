package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCourseFileNotFound = errors.New("course file not found")

type CourseFileRepo struct {
	pool *pgxpool.Pool
}

type CourseFileRecord struct {
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

func NewCourseFileRepo(pool *pgxpool.Pool) *CourseFileRepo {
	return &CourseFileRepo{pool: pool}
}

func (r *CourseFileRepo) Insert(ctx context.Context, record CourseFileRecord) (CourseFileRecord, error) {
	if r.pool == nil {
		return CourseFileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(record.FileURL) == "" {
		return CourseFileRecord{}, fmt.Errorf("file url is required")
	}

	stored, err := scanCourseFile(r.pool.QueryRow(ctx, `
INSERT INTO course_files (title, description, file_name, file_url, file_type, file_size, lesson_id, module_id, is_welcome_video, uploaded_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
RETURNING id, title, description, file_name, file_url, file_type, file_size, lesson_id, module_id, is_welcome_video, uploaded_at
`,
		strings.TrimSpace(record.Title),
		record.Description,
		strings.TrimSpace(record.FileName),
		strings.TrimSpace(record.FileURL),
		record.FileType,
		record.FileSize,
		record.LessonID,
		record.ModuleID,
		record.IsWelcomeVideo,
	))
	if err != nil {
		return CourseFileRecord{}, fmt.Errorf("insert course file: %w", err)
	}

	return stored, nil
}

func (r *CourseFileRepo) List(ctx context.Context) ([]CourseFileRecord, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, title, description, file_name, file_url, file_type, file_size, lesson_id, module_id, is_welcome_video, uploaded_at
FROM course_files
ORDER BY uploaded_at DESC
`)
	if err != nil {
		return nil, fmt.Errorf("list course files: %w", err)
	}
	defer rows.Close()

	var files []CourseFileRecord
	for rows.Next() {
		record, err := scanCourseFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan course file: %w", err)
		}
		files = append(files, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate course files: %w", err)
	}

	return files, nil
}

func (r *CourseFileRepo) FindByID(ctx context.Context, fileID int64) (CourseFileRecord, error) {
	if r.pool == nil {
		return CourseFileRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if fileID <= 0 {
		return CourseFileRecord{}, fmt.Errorf("invalid file id")
	}

	record, err := scanCourseFile(r.pool.QueryRow(ctx, `
SELECT id, title, description, file_name, file_url, file_type, file_size, lesson_id, module_id, is_welcome_video, uploaded_at
FROM course_files
WHERE id = $1
LIMIT 1
`, fileID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseFileRecord{}, ErrCourseFileNotFound
		}
		return CourseFileRecord{}, fmt.Errorf("find course file: %w", err)
	}

	return record, nil
}

func (r *CourseFileRepo) Delete(ctx context.Context, fileID int64) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if fileID <= 0 {
		return fmt.Errorf("invalid file id")
	}

	tag, err := r.pool.Exec(ctx, `
DELETE FROM course_files
WHERE id = $1
`, fileID)
	if err != nil {
		return fmt.Errorf("delete course file: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCourseFileNotFound
	}

	return nil
}

func scanCourseFile(row pgx.Row) (CourseFileRecord, error) {
	var record CourseFileRecord
	if err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Description,
		&record.FileName,
		&record.FileURL,
		&record.FileType,
		&record.FileSize,
		&record.LessonID,
		&record.ModuleID,
		&record.IsWelcomeVideo,
		&record.UploadedAt,
	); err != nil {
		return CourseFileRecord{}, err
	}
	return record, nil
}
