package tables

import (
	"context"
	"database/sql"

	"github.com/mesaflow/orders-service/internal/domain"
)

// Directory resolves tables by number or id within one business. It is
// the only component that reads the tables relation; the order engine
// consumes it through an interface.
type Directory struct {
	db *sql.DB
}

func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

func (d *Directory) FindByNumber(ctx context.Context, number int, businessID string) (*domain.Table, error) {
	return d.findOne(ctx, `
		SELECT id, number, business_id
		FROM tables
		WHERE number = $1 AND business_id = $2
	`, number, businessID)
}

func (d *Directory) FindByID(ctx context.Context, id, businessID string) (*domain.Table, error) {
	return d.findOne(ctx, `
		SELECT id, number, business_id
		FROM tables
		WHERE id = $1 AND business_id = $2
	`, id, businessID)
}

func (d *Directory) findOne(ctx context.Context, query string, args ...any) (*domain.Table, error) {
	table := &domain.Table{}

	err := d.db.QueryRowContext(ctx, query, args...).
		Scan(&table.ID, &table.Number, &table.BusinessID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	return table, nil
}
