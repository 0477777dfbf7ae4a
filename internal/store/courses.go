package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/alextreichler/coursehub/internal/models"
)

const courseColumns = `id, title, subtitle, price, description, thumbnail_url, published, created_at, updated_at`

func scanCourse(row scanner) (*models.Course, error) {
	var c models.Course
	if err := row.Scan(&c.ID, &c.Title, &c.Subtitle, &c.Price, &c.Description, &c.ThumbnailURL, &c.Published, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Store) CreateCourse(ctx context.Context, c *models.Course) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		query := `
			INSERT INTO courses (id, title, subtitle, price, description, thumbnail_url, published, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, c.ID, c.Title, c.Subtitle, c.Price, c.Description, c.ThumbnailURL, c.Published, now, now); err != nil {
			return err
		}
		c.CreatedAt = now
		c.UpdatedAt = now
		return nil
	})
}

func getCourse(ctx context.Context, q querier, id string) (*models.Course, error) {
	row := q.QueryRowContext(ctx, `SELECT `+courseColumns+` FROM courses WHERE id = ?`, id)
	c, err := scanCourse(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("course", id)
	}
	return c, err
}

func courseExists(ctx context.Context, q querier, id string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM courses WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return apperr.NotFound("course", id)
	}
	return nil
}

func (s *Store) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	var course *models.Course
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		course, err = getCourse(ctx, tx, id)
		return err
	})
	return course, err
}

// ListCourses returns courses newest first. Insertion order (rowid) is used rather
// than created_at so that courses created within the same instant keep a stable order.
func (s *Store) ListCourses(ctx context.Context, publishedOnly bool) ([]models.Course, error) {
	query := `SELECT ` + courseColumns + ` FROM courses`
	if publishedOnly {
		query += ` WHERE published = 1`
	}
	query += ` ORDER BY rowid DESC`

	courses := []models.Course{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			c, err := scanCourse(rows)
			if err != nil {
				return err
			}
			courses = append(courses, *c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return courses, nil
}

// UpdateCourse loads the course, lets apply mutate it and writes it back, all in one
// transaction. An error from apply aborts the update.
func (s *Store) UpdateCourse(ctx context.Context, id string, apply func(*models.Course) error) (*models.Course, error) {
	var course *models.Course
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		c, err := getCourse(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := apply(c); err != nil {
			return err
		}

		c.UpdatedAt = time.Now().UTC()
		query := `
			UPDATE courses
			SET title = ?, subtitle = ?, price = ?, description = ?, thumbnail_url = ?, published = ?, updated_at = ?
			WHERE id = ?
		`
		if _, err := tx.ExecContext(ctx, query, c.Title, c.Subtitle, c.Price, c.Description, c.ThumbnailURL, c.Published, c.UpdatedAt, c.ID); err != nil {
			return err
		}
		course = c
		return nil
	})
	return course, err
}

// DeleteCourse removes the course and its lessons. Orders are left untouched.
func (s *Store) DeleteCourse(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := courseExists(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM lessons WHERE course_id = ?`, id); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM courses WHERE id = ?`, id)
		return err
	})
}
