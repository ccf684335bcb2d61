package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/huandu/go-sqlbuilder"

	"github.com/GTDGit/catalog_api/internal/models"
)

const productColumns = `id, sku, name, category, description, base_price, component_price,
	can_be_component, can_have_components, stock_quantity, version, base_product_id,
	previous_version_id, replaced_by, status, discontinued_reason, created_at, updated_at`

// ProductRepository handles data access for products.
type ProductRepository struct {
	q querier
}

// NewProductRepository creates a new ProductRepository.
func NewProductRepository(q querier) *ProductRepository {
	return &ProductRepository{q: q}
}

// GetByID returns a single product by id.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*models.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

// GetByIDForUpdate returns a product and locks its row until the transaction ends.
func (r *ProductRepository) GetByIDForUpdate(ctx context.Context, id int64) (*models.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id)
}

// GetBySKU returns a single product by sku.
func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (*models.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE sku = $1`, sku)
}

func (r *ProductRepository) get(ctx context.Context, q string, arg any) (*models.Product, error) {
	var p models.Product
	if err := r.q.GetContext(ctx, &p, q, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

// Create inserts a new product.
func (r *ProductRepository) Create(ctx context.Context, p *models.Product) error {
	const q = `
        INSERT INTO products (sku, name, category, description, base_price, component_price,
            can_be_component, can_have_components, stock_quantity, version, base_product_id,
            previous_version_id, replaced_by, status, discontinued_reason)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
        RETURNING id, created_at, updated_at`

	err := r.q.QueryRowxContext(ctx, q,
		p.SKU, p.Name, p.Category, p.Description, p.BasePrice, p.ComponentPrice,
		p.CanBeComponent, p.CanHaveComponents, p.StockQuantity, p.Version, p.BaseProductID,
		p.PreviousVersionID, p.ReplacedBy, p.Status, p.DiscontinuedReason,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapProductError(err, p.SKU)
}

// Update writes every mutable column of p.
func (r *ProductRepository) Update(ctx context.Context, p *models.Product) error {
	const q = `
        UPDATE products SET
            sku = $2, name = $3, description = $4, base_price = $5, component_price = $6,
            can_be_component = $7, can_have_components = $8, stock_quantity = $9,
            replaced_by = $10, status = $11, discontinued_reason = $12, updated_at = NOW()
        WHERE id = $1
        RETURNING updated_at`

	err := r.q.QueryRowxContext(ctx, q,
		p.ID, p.SKU, p.Name, p.Description, p.BasePrice, p.ComponentPrice,
		p.CanBeComponent, p.CanHaveComponents, p.StockQuantity,
		p.ReplacedBy, p.Status, p.DiscontinuedReason,
	).Scan(&p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrProductNotFound
	}
	return mapProductError(err, p.SKU)
}

// Delete removes a product. Outgoing edges cascade; incoming edges make the
// delete fail with models.ErrComponentInUse.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		if code, _ := pqCode(err); code == codeForeignKeyViolation {
			return fmt.Errorf("%w: product %d", models.ErrComponentInUse, id)
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrProductNotFound
	}
	return nil
}

// List returns products with an optional status filter and pagination, plus
// the total count. Page begins at 1.
func (r *ProductRepository) List(ctx context.Context, filter models.ProductFilter) ([]models.Product, int, error) {
	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	where := func(sb *sqlbuilder.SelectBuilder) {
		if filter.Status != nil {
			sb.Where(sb.Equal("status", string(*filter.Status)))
		}
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)").From("products")
	where(countSb)
	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.q.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(productColumns).From("products")
	where(sb)
	sb.OrderBy("id").Limit(limit).Offset((page - 1) * limit)
	query, args := sb.Build()

	products := []models.Product{}
	if err := r.q.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// ListLineage returns every version of the lineage rooted at baseID.
func (r *ProductRepository) ListLineage(ctx context.Context, baseID int64) ([]models.Product, error) {
	const q = `SELECT ` + productColumns + ` FROM products
        WHERE id = $1 OR base_product_id = $1
        ORDER BY version`
	products := []models.Product{}
	if err := r.q.SelectContext(ctx, &products, q, baseID); err != nil {
		return nil, err
	}
	return products, nil
}

// DecrementStock lowers a tracked stock level by qty.
func (r *ProductRepository) DecrementStock(ctx context.Context, id int64, qty int) error {
	const q = `
        UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = NOW()
        WHERE id = $1 AND stock_quantity IS NOT NULL AND stock_quantity >= $2`

	res, err := r.q.ExecContext(ctx, q, id, qty)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var stock *int
	if err := r.q.GetContext(ctx, &stock, `SELECT stock_quantity FROM products WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrProductNotFound
		}
		return err
	}
	if stock == nil {
		return nil
	}
	return fmt.Errorf("%w: product %d has %d left, %d requested", models.ErrInsufficientStock, id, *stock, qty)
}

func mapProductError(err error, sku string) error {
	if err == nil {
		return nil
	}
	code, constraint := pqCode(err)
	switch {
	case code == codeUniqueViolation && constraint == "uq_products_active_lineage":
		return fmt.Errorf("%w: lineage of %s already has an active version", models.ErrStaleVersion, sku)
	case code == codeUniqueViolation:
		return fmt.Errorf("%w: %s", models.ErrSKUExists, sku)
	}
	return err
}
