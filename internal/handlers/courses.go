package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/alextreichler/coursehub/internal/service"
	"github.com/shopspring/decimal"
)

type CourseHandler struct {
	Catalog *service.CatalogService
}

// courseRequest is shared by create and update. Pointers tell an absent field from
// an empty one; price is kept raw so it can be sent as a number or a string.
type courseRequest struct {
	Title        *string         `json:"title"`
	Subtitle     *string         `json:"subtitle"`
	Price        json.RawMessage `json:"price"`
	Description  *string         `json:"description"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	Published    *bool           `json:"published"`
}

func parsePrice(raw json.RawMessage) (*decimal.Decimal, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	text := string(raw)
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return nil, apperr.Field("price", "must be a number")
		}
	}
	d, err := service.ParsePrice(text)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.Catalog.ListCourses(r.Context(), service.CourseFilter{
		PublishedOnly: queryBool(r, "published"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.Catalog.GetCourse(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

// CreateCourse always stores a draft; a published flag in the body is ignored.
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}

	course, err := h.Catalog.CreateCourse(r.Context(), service.CourseInput{
		Title:        deref(req.Title),
		Subtitle:     deref(req.Subtitle),
		Price:        price,
		Description:  deref(req.Description),
		ThumbnailURL: deref(req.ThumbnailURL),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	price, err := parsePrice(req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}

	course, err := h.Catalog.UpdateCourse(r.Context(), r.PathValue("id"), service.CoursePatch{
		Title:        req.Title,
		Subtitle:     req.Subtitle,
		Price:        price,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		Published:    req.Published,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.DeleteCourse(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CourseHandler) ListLessons(w http.ResponseWriter, r *http.Request) {
	lessons, err := h.Catalog.ListLessons(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lessons)
}

func (h *CourseHandler) AddLesson(w http.ResponseWriter, r *http.Request) {
	var in service.LessonInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	lesson, err := h.Catalog.AddLesson(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, lesson)
}
