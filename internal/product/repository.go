package product

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// Repository is the read side of the product catalog.
type Repository interface {
	GetBySlugs(ctx context.Context, slugs []string) ([]Product, error)
	ListAvailable(ctx context.Context) ([]Product, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

// GetBySlugs resolves all slugs in one query. Unknown and inactive slugs are
// simply absent from the result.
func (r *repository) GetBySlugs(ctx context.Context, slugs []string) ([]Product, error) {
	if len(slugs) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, slug, name_fr, name_en, price_eur, unit, quantity, is_active
		FROM products
		WHERE slug = ANY($1) AND is_active = TRUE
	`, pq.Array(slugs))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		var unit sql.NullString
		if err := rows.Scan(&p.ID, &p.Slug, &p.NameFR, &p.NameEN, &p.PriceEUR, &unit, &p.Quantity, &p.Active); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		p.Unit = unit.String
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	return products, nil
}

func (r *repository) ListAvailable(ctx context.Context) ([]Product, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id, p.slug, p.name_fr, p.name_en, p.price_eur, p.unit, p.quantity,
		       c.name_fr, c.name_en, COALESCE(c.sort_order, 0)
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.is_active = TRUE AND p.quantity > 0
		ORDER BY COALESCE(c.sort_order, 0), p.name_fr
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var (
			p          Product
			unit       sql.NullString
			catNameFR  sql.NullString
			catNameEN  *string
			catSortOrd int
		)
		if err := rows.Scan(
			&p.ID, &p.Slug, &p.NameFR, &p.NameEN, &p.PriceEUR, &unit, &p.Quantity,
			&catNameFR, &catNameEN, &catSortOrd,
		); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
		}
		p.Unit = unit.String
		p.Active = true
		if catNameFR.Valid {
			p.Category = &Category{NameFR: catNameFR.String, NameEN: catNameEN, SortOrder: catSortOrd}
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	return products, nil
}
