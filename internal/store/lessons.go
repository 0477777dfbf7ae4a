package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/alextreichler/coursehub/internal/models"
)

func (s *Store) CreateLesson(ctx context.Context, l *models.Lesson) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		if err := courseExists(ctx, tx, l.CourseID); err != nil {
			return err
		}
		query := `
			INSERT INTO lessons (id, course_id, title, content, video_url, sort_order, free_preview, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, l.ID, l.CourseID, l.Title, l.Content, l.VideoURL, l.Order, l.FreePreview, now); err != nil {
			return err
		}
		l.CreatedAt = now
		return nil
	})
}

// ListLessons returns the lessons of a course sorted by order index, ties broken by id.
func (s *Store) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	lessons := []models.Lesson{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := courseExists(ctx, tx, courseID); err != nil {
			return err
		}

		query := `
			SELECT id, course_id, title, content, video_url, sort_order, free_preview, created_at
			FROM lessons
			WHERE course_id = ?
			ORDER BY sort_order ASC, id ASC
		`
		rows, err := tx.QueryContext(ctx, query, courseID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var l models.Lesson
			if err := rows.Scan(&l.ID, &l.CourseID, &l.Title, &l.Content, &l.VideoURL, &l.Order, &l.FreePreview, &l.CreatedAt); err != nil {
				return err
			}
			lessons = append(lessons, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return lessons, nil
}
