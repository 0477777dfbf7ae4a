// Package service holds the catalog, order and summary operations. Services validate
// input and build domain records; the store enforces atomicity.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alextreichler/coursehub/internal/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CatalogStore interface {
	CreateCourse(ctx context.Context, c *models.Course) error
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCourses(ctx context.Context, publishedOnly bool) ([]models.Course, error)
	UpdateCourse(ctx context.Context, id string, apply func(*models.Course) error) (*models.Course, error)
	DeleteCourse(ctx context.Context, id string) error
	CreateLesson(ctx context.Context, l *models.Lesson) error
	ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error)
}

type CatalogService struct {
	store CatalogStore
}

func NewCatalogService(store CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

type CourseFilter struct {
	PublishedOnly bool
}

// CourseInput carries the editable course fields. Price is checked by hand because a
// missing price and a zero price must be told apart.
type CourseInput struct {
	Title        string           `json:"title" validate:"required,max=200"`
	Subtitle     string           `json:"subtitle" validate:"max=300"`
	Price        *decimal.Decimal `json:"price" validate:"-"`
	Description  string           `json:"description" validate:"max=20000"`
	ThumbnailURL string           `json:"thumbnail_url" validate:"max=2048"`
}

func (in *CourseInput) normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.ThumbnailURL = strings.TrimSpace(in.ThumbnailURL)
}

func (in CourseInput) validate() error {
	return validateStruct(in, checkPrice(in.Price))
}

// CoursePatch is a partial update; nil fields are left unchanged.
type CoursePatch struct {
	Title        *string
	Subtitle     *string
	Price        *decimal.Decimal
	Description  *string
	ThumbnailURL *string
	Published    *bool
}

func (p CoursePatch) apply(in *CourseInput) {
	if p.Title != nil {
		in.Title = *p.Title
	}
	if p.Subtitle != nil {
		in.Subtitle = *p.Subtitle
	}
	if p.Price != nil {
		in.Price = p.Price
	}
	if p.Description != nil {
		in.Description = *p.Description
	}
	if p.ThumbnailURL != nil {
		in.ThumbnailURL = *p.ThumbnailURL
	}
}

type LessonInput struct {
	Title       string `json:"title" validate:"required,max=200"`
	Content     string `json:"content" validate:"max=100000"`
	VideoURL    string `json:"video_url" validate:"max=2048"`
	Order       int    `json:"order"`
	FreePreview bool   `json:"free_preview"`
}

func (s *CatalogService) ListCourses(ctx context.Context, f CourseFilter) ([]models.Course, error) {
	return s.store.ListCourses(ctx, f.PublishedOnly)
}

func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	return s.store.GetCourse(ctx, id)
}

// CreateCourse stores a new course as a draft.
func (s *CatalogService) CreateCourse(ctx context.Context, in CourseInput) (*models.Course, error) {
	in.normalize()
	if err := in.validate(); err != nil {
		return nil, err
	}

	c := &models.Course{
		ID:           uuid.NewString(),
		Title:        in.Title,
		Subtitle:     in.Subtitle,
		Price:        *in.Price,
		Description:  in.Description,
		ThumbnailURL: in.ThumbnailURL,
		Published:    false,
	}
	if err := s.store.CreateCourse(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}

	slog.Info("Course created", "id", c.ID, "title", c.Title, "price", c.Price.String())
	return c, nil
}

// UpdateCourse applies the patch to the stored course and validates the result before
// it is written.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, p CoursePatch) (*models.Course, error) {
	var wasPublished bool
	c, err := s.store.UpdateCourse(ctx, id, func(c *models.Course) error {
		wasPublished = c.Published

		price := c.Price
		in := CourseInput{
			Title:        c.Title,
			Subtitle:     c.Subtitle,
			Price:        &price,
			Description:  c.Description,
			ThumbnailURL: c.ThumbnailURL,
		}
		p.apply(&in)
		in.normalize()
		if err := in.validate(); err != nil {
			return err
		}

		c.Title = in.Title
		c.Subtitle = in.Subtitle
		c.Price = *in.Price
		c.Description = in.Description
		c.ThumbnailURL = in.ThumbnailURL
		if p.Published != nil {
			c.Published = *p.Published
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wasPublished != c.Published {
		slog.Info("Course publish state changed", "id", c.ID, "published", c.Published)
	} else {
		slog.Info("Course updated", "id", c.ID)
	}
	return c, nil
}

func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	if err := s.store.DeleteCourse(ctx, id); err != nil {
		return err
	}
	slog.Info("Course deleted", "id", id)
	return nil
}

func (s *CatalogService) ListLessons(ctx context.Context, courseID string) ([]models.Lesson, error) {
	return s.store.ListLessons(ctx, courseID)
}

func (s *CatalogService) AddLesson(ctx context.Context, courseID string, in LessonInput) (*models.Lesson, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.VideoURL = strings.TrimSpace(in.VideoURL)
	if err := validateStruct(in, nil); err != nil {
		return nil, err
	}

	l := &models.Lesson{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       in.Title,
		Content:     in.Content,
		VideoURL:    in.VideoURL,
		Order:       in.Order,
		FreePreview: in.FreePreview,
	}
	if err := s.store.CreateLesson(ctx, l); err != nil {
		return nil, err
	}

	slog.Info("Lesson added", "id", l.ID, "course_id", courseID, "order", l.Order)
	return l, nil
}
