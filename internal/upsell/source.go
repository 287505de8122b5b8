package upsell

import (
	"context"
	"database/sql"
	"fmt"

	"upsell-workers/internal/models"
)

// SignalSource reads the category and sales signal of every active product.
type SignalSource interface {
	LoadSignals(ctx context.Context) ([]models.ProductSignal, error)
}

const postgresSignalsQuery = `SELECT sku, name, category, price, units_sold FROM product_sales_signals WHERE is_active = TRUE ORDER BY sku`

// PostgresSource reads signals from the product_sales_signals view.
type PostgresSource struct {
	db *sql.DB
}

func NewPostgresSource(db *sql.DB) *PostgresSource {
	return &PostgresSource{db: db}
}

func (s *PostgresSource) LoadSignals(ctx context.Context) ([]models.ProductSignal, error) {
	rows, err := s.db.QueryContext(ctx, postgresSignalsQuery)
	if err != nil {
		return nil, fmt.Errorf("query product signals: %w", err)
	}
	defer rows.Close()

	var signals []models.ProductSignal
	for rows.Next() {
		var (
			sig      models.ProductSignal
			name     sql.NullString
			category sql.NullString
			price    sql.NullFloat64
			units    sql.NullInt64
		)
		if err := rows.Scan(&sig.SKU, &name, &category, &price, &units); err != nil {
			return nil, fmt.Errorf("scan product signal: %w", err)
		}
		sig.Name = name.String
		sig.Category = category.String
		sig.Price = price.Float64
		sig.UnitsSold = units.Int64
		signals = append(signals, sig)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product signals: %w", err)
	}
	return signals, nil
}
