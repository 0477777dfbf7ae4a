package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// The UI formats prices and revenue as numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Course struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Subtitle     string          `json:"subtitle"`
	Price        decimal.Decimal `json:"price"`
	Description  string          `json:"description"`
	ThumbnailURL string          `json:"thumbnail_url"`
	Published    bool            `json:"published"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type Lesson struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	VideoURL    string    `json:"video_url"`
	Order       int       `json:"order"`
	FreePreview bool      `json:"free_preview"`
	CreatedAt   time.Time `json:"created_at"`
}

type OrderStatus string

// Rejected purchases are returned as errors and never stored, so completed is the
// only persisted status.
const OrderCompleted OrderStatus = "completed"

type Order struct {
	ID          string          `json:"id"`
	OrderRef    string          `json:"order_ref"` // Public "A7X9..." reference
	CourseID    string          `json:"course_id"`
	CourseTitle string          `json:"course_title"` // Snapshot at purchase time
	BuyerName   string          `json:"buyer_name"`
	BuyerEmail  string          `json:"buyer_email"`
	Price       decimal.Decimal `json:"price"` // Snapshot at purchase time
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Summary struct {
	TotalCourses     int             `json:"total_courses"`
	PublishedCourses int             `json:"published_courses"`
	TotalLessons     int             `json:"total_lessons"`
	TotalSales       int             `json:"total_sales"`
	Revenue          decimal.Decimal `json:"revenue"`
}
