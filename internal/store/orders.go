package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alextreichler/coursehub/internal/apperr"
	"github.com/alextreichler/coursehub/internal/models"
)

// ErrDuplicateOrderRef is wrapped in the conflict returned when the order reference
// is already taken. Callers can retry with a new reference.
var ErrDuplicateOrderRef = errors.New("order reference already in use")

const orderColumns = `id, order_ref, course_id, course_title, buyer_name, buyer_email, price, status, created_at`

func scanOrder(row scanner) (*models.Order, error) {
	var o models.Order
	if err := row.Scan(&o.ID, &o.OrderRef, &o.CourseID, &o.CourseTitle, &o.BuyerName, &o.BuyerEmail, &o.Price, &o.Status, &o.CreatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}

// PlaceOrder records a purchase of a published course. The eligibility check and the
// insert are one statement: the title and price are copied from the course row only if
// it is published at the moment of the write. When nothing is inserted the course is
// looked up again, in the same transaction, to report why.
//
// ID, OrderRef, CourseID, BuyerName, BuyerEmail and Status must be set by the caller;
// the snapshot fields and CreatedAt are filled from the stored row.
func (s *Store) PlaceOrder(ctx context.Context, o *models.Order) (*models.Order, error) {
	var placed *models.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		now := time.Now().UTC()
		query := `
			INSERT INTO orders (id, order_ref, course_id, course_title, buyer_name, buyer_email, price, status, created_at)
			SELECT ?, ?, c.id, c.title, ?, ?, c.price, ?, ?
			FROM courses c
			WHERE c.id = ? AND c.published = 1
		`
		res, err := tx.ExecContext(ctx, query, o.ID, o.OrderRef, o.BuyerName, o.BuyerEmail, o.Status, now, o.CourseID)
		if err != nil {
			if isUniqueViolation(err, "orders.order_ref") {
				return apperr.StorageConflict(ErrDuplicateOrderRef)
			}
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}

		if n == 0 {
			if _, err := getCourse(ctx, tx, o.CourseID); err != nil {
				return err
			}
			return apperr.Ineligible("course is not published")
		}

		placed, err = getOrder(ctx, tx, o.ID)
		return err
	})
	return placed, err
}

func getOrder(ctx context.Context, q querier, id string) (*models.Order, error) {
	row := q.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("order", id)
	}
	return o, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order *models.Order
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		order, err = getOrder(ctx, tx, id)
		return err
	})
	return order, err
}

// OrderQuery selects a page of the ledger. BuyerEmail matches case-insensitively.
type OrderQuery struct {
	BuyerEmail string
	Limit      int
	Offset     int
}

// ListOrders returns a page of orders newest first, plus the total number of orders
// matching the query.
func (s *Store) ListOrders(ctx context.Context, q OrderQuery) ([]models.Order, int, error) {
	where := ``
	var args []any
	if q.BuyerEmail != "" {
		where = ` WHERE buyer_email = ? COLLATE NOCASE`
		args = append(args, q.BuyerEmail)
	}

	orders := []models.Order{}
	var total int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
			return err
		}

		query := `SELECT ` + orderColumns + ` FROM orders` + where + ` ORDER BY rowid DESC LIMIT ? OFFSET ?`
		rows, err := tx.QueryContext(ctx, query, append(args, q.Limit, q.Offset)...)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			o, err := scanOrder(rows)
			if err != nil {
				return err
			}
			orders = append(orders, *o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
