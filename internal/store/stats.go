package store

import (
	"context"
	"database/sql"

	"github.com/alextreichler/coursehub/internal/models"
	"github.com/shopspring/decimal"
)

// GetDashboardStats scans the catalog and the ledger inside one read transaction, so
// all figures describe the same committed state.
func (s *Store) GetDashboardStats(ctx context.Context) (*models.Summary, error) {
	stats := &models.Summary{Revenue: decimal.Zero}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		// 1. Counts
		err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM courses),
				(SELECT COUNT(*) FROM courses WHERE published = 1),
				(SELECT COUNT(*) FROM lessons),
				(SELECT COUNT(*) FROM orders WHERE status = ?)
		`, models.OrderCompleted).Scan(&stats.TotalCourses, &stats.PublishedCourses, &stats.TotalLessons, &stats.TotalSales)
		if err != nil {
			return err
		}

		// 2. Revenue, summed as decimals rather than by SQLite's floating point SUM
		rows, err := tx.QueryContext(ctx, `SELECT price FROM orders WHERE status = ?`, models.OrderCompleted)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var price decimal.Decimal
			if err := rows.Scan(&price); err != nil {
				return err
			}
			stats.Revenue = stats.Revenue.Add(price)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
