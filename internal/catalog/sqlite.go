package catalog

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/fjod/bakery-storefront/internal/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteCatalog serves products from a local SQLite file. Categories are
// always returned expanded.
type SQLiteCatalog struct {
	db *sql.DB
}

func NewSQLiteCatalog(dbPath string) (*SQLiteCatalog, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps ":memory:" databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteCatalog{db: db}, nil
}

func (c *SQLiteCatalog) RunMigrations() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("could not open embedded migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(c.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `
	SELECT p.id, p.name, p.name_zh, p.description, p.price, p.discount_price,
	       p.main_image, p.featured, p.best_seller, p.new_arrival, p.status,
	       p.category_id, c.name, c.name_zh, c.slug
	FROM products p
	LEFT JOIN categories c ON c.id = p.category_id
`

func (c *SQLiteCatalog) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	products, err := c.query(ctx, productColumns+" WHERE p.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrProductNotFound
	}
	return &products[0], nil
}

func (c *SQLiteCatalog) ListProducts(ctx context.Context, f Filter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != "" {
		where = append(where, "p.category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Featured {
		where = append(where, "p.featured = 1")
	}
	if f.BestSeller {
		where = append(where, "p.best_seller = 1")
	}
	if f.NewArrival {
		where = append(where, "p.new_arrival = 1")
	}

	query := productColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY p.created_at, p.id"

	return c.query(ctx, query, args...)
}

func (c *SQLiteCatalog) query(ctx context.Context, query string, args ...any) ([]domain.Product, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		var (
			p          domain.Product
			discount   decimal.NullDecimal
			status     string
			categoryID sql.NullString
			catName    sql.NullString
			catNameZh  sql.NullString
			catSlug    sql.NullString
		)
		err := rows.Scan(
			&p.ID, &p.Name, &p.NameZh, &p.Description, &p.Price, &discount,
			&p.MainImage, &p.Featured, &p.BestSeller, &p.NewArrival, &status,
			&categoryID, &catName, &catNameZh, &catSlug,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		if discount.Valid {
			p.DiscountPrice = &discount.Decimal
		}
		p.Status = domain.ProductStatus(status)
		switch {
		case catName.Valid:
			p.Category = domain.ExpandedCategory(domain.Category{
				ID:     categoryID.String,
				Name:   catName.String,
				NameZh: catNameZh.String,
				Slug:   catSlug.String,
			})
		case categoryID.Valid:
			p.Category = domain.CategoryID(categoryID.String)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	rows.Close()

	if err := c.attachUnits(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

func (c *SQLiteCatalog) attachUnits(ctx context.Context, products []domain.Product) error {
	if len(products) == 0 {
		return nil
	}

	index := make(map[string]int, len(products))
	placeholders := make([]string, len(products))
	args := make([]any, len(products))
	for i, p := range products {
		index[p.ID] = i
		placeholders[i] = "?"
		args[i] = p.ID
	}

	query := fmt.Sprintf(`
		SELECT product_id, unit_type, price, stock
		FROM product_units
		WHERE product_id IN (%s)
		ORDER BY product_id, position`, strings.Join(placeholders, ","))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to query unit options: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID string
			opt       domain.UnitOption
		)
		if err := rows.Scan(&productID, &opt.UnitType, &opt.Price, &opt.Stock); err != nil {
			return fmt.Errorf("failed to scan unit option: %w", err)
		}
		i := index[productID]
		products[i].UnitOptions = append(products[i].UnitOptions, opt)
	}
	return rows.Err()
}

func (c *SQLiteCatalog) Close() error {
	return c.db.Close()
}
