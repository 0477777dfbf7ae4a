package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/alextreichler/coursehub/internal/models"
	"github.com/alextreichler/coursehub/internal/store"
	"github.com/google/uuid"
)

const (
	DefaultOrderPageSize = 20
	MaxOrderPageSize     = 100
)

type OrderLedger interface {
	PlaceOrder(ctx context.Context, o *models.Order) (*models.Order, error)
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, q store.OrderQuery) ([]models.Order, int, error)
}

type OrderService struct {
	ledger OrderLedger
	newRef func() string
}

func NewOrderService(ledger OrderLedger) *OrderService {
	return &OrderService{ledger: ledger, newRef: generateOrderRef}
}

type OrderInput struct {
	CourseID   string `json:"course_id" validate:"required"`
	BuyerName  string `json:"buyer_name" validate:"required,max=200"`
	BuyerEmail string `json:"buyer_email" validate:"required,max=320"`
}

type OrderFilter struct {
	BuyerEmail string
	Page       int
	Limit      int
}

type OrderPage struct {
	Orders []models.Order `json:"orders"`
	Total  int            `json:"total"`
	Page   int            `json:"page"`
	Limit  int            `json:"limit"`
}

// PlaceOrder records a settled purchase of a published course. Price and title are
// snapshotted by the ledger in the same write that checks the publish gate; a rejected
// attempt leaves no record.
func (s *OrderService) PlaceOrder(ctx context.Context, in OrderInput) (*models.Order, error) {
	in.CourseID = strings.TrimSpace(in.CourseID)
	in.BuyerName = strings.TrimSpace(in.BuyerName)
	in.BuyerEmail = strings.TrimSpace(in.BuyerEmail)
	if err := validateStruct(in, nil); err != nil {
		return nil, err
	}

	var order *models.Order
	var err error
	// A reference collision is retried once with a fresh reference.
	for attempt := 0; attempt < 2; attempt++ {
		order, err = s.ledger.PlaceOrder(ctx, &models.Order{
			ID:         uuid.NewString(),
			OrderRef:   s.newRef(),
			CourseID:   in.CourseID,
			BuyerName:  in.BuyerName,
			BuyerEmail: in.BuyerEmail,
			Status:     models.OrderCompleted,
		})
		if !errors.Is(err, store.ErrDuplicateOrderRef) {
			break
		}
		slog.Warn("Order reference collision", "course_id", in.CourseID, "attempt", attempt+1)
	}
	if err != nil {
		slog.Warn("Order rejected", "course_id", in.CourseID, "error", err)
		return nil, err
	}

	slog.Info("Order placed", "id", order.ID, "order_ref", order.OrderRef, "course_id", order.CourseID, "price", order.Price.String())
	return order, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	return s.ledger.GetOrder(ctx, id)
}

// ListOrders returns one page of the ledger, newest first. Page is 1-based; out of range
// page and limit values fall back to defaults.
func (s *OrderService) ListOrders(ctx context.Context, f OrderFilter) (*OrderPage, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = DefaultOrderPageSize
	}
	if f.Limit > MaxOrderPageSize {
		f.Limit = MaxOrderPageSize
	}

	orders, total, err := s.ledger.ListOrders(ctx, store.OrderQuery{
		BuyerEmail: strings.TrimSpace(f.BuyerEmail),
		Limit:      f.Limit,
		Offset:     (f.Page - 1) * f.Limit,
	})
	if err != nil {
		return nil, err
	}
	return &OrderPage{Orders: orders, Total: total, Page: f.Page, Limit: f.Limit}, nil
}

func generateOrderRef() string {
	// 8 chars, uppercase alphanumeric without I, O, 1, 0
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "ORD" + strconv.FormatInt(time.Now().UnixNano()%100000, 10)
	}
	for i := range b {
		b[i] = charset[int(b[i])%len(charset)]
	}
	return string(b)
}
