package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/shopmart-system/internal/model"
	"github.com/shopspring/decimal"
)

// CreateCategory создаёт новую категорию каталога.
func (r *PostgresRepository) CreateCategory(ctx context.Context, c *model.Category) (*model.Category, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO categories (name, description, parent_id)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		c.Name, c.Description, c.ParentID,
	)

	created := *c
	if err := row.Scan(&created.ID, &created.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, c.Name)
		}
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: parent", ErrCategoryNotFound)
		}
		return nil, fmt.Errorf("create category: %w", err)
	}

	return &created, nil
}

// GetCategoryByID возвращает категорию по идентификатору.
func (r *PostgresRepository) GetCategoryByID(ctx context.Context, id int64) (*model.Category, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, description, parent_id, created_at FROM categories WHERE id = $1`,
		id,
	)

	var c model.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCategoryNotFound, id)
		}
		return nil, fmt.Errorf("get category: %w", err)
	}

	return &c, nil
}

// ListCategories возвращает все категории каталога.
func (r *PostgresRepository) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, description, parent_id, created_at FROM categories ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("select categories: %w", err)
	}
	defer rows.Close()

	var res []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		res = append(res, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// UpdateCategory частично обновляет категорию.
func (r *PostgresRepository) UpdateCategory(ctx context.Context, id int64, name, description *string) (*model.Category, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE categories
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description)
		 WHERE id = $1
		 RETURNING id, name, description, parent_id, created_at`,
		id, name, description,
	)

	var c model.Category
	if err := row.Scan(&c.ID, &c.Name, &c.Description, &c.ParentID, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrCategoryNotFound, id)
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", ErrCategoryExists, *name)
		}
		return nil, fmt.Errorf("update category: %w", err)
	}

	return &c, nil
}

// ProductUpdate описывает частичное обновление товара: nil-поля не меняются.
type ProductUpdate struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Enabled     *bool
}

const productColumns = `id, name, description, category_id, price, stock_quantity, product_type, enabled, created_at, updated_at`

func scanProduct(row pgx.Row) (*model.Product, error) {
	var p model.Product
	var productType string
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.CategoryID, &p.Price,
		&p.StockQuantity, &productType, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.Type = model.ProductType(productType)
	return &p, nil
}

// CreateProduct создаёт новый товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO products (name, description, category_id, price, stock_quantity, product_type, enabled)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING `+productColumns,
		p.Name, p.Description, p.CategoryID, p.Price, p.StockQuantity, string(p.Type), p.Enabled,
	)

	created, err := scanProduct(row)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, fmt.Errorf("%w: category", ErrCategoryNotFound)
		}
		return nil, fmt.Errorf("create product: %w", err)
	}

	return created, nil
}

// GetProductByID возвращает товар по идентификатору.
func (r *PostgresRepository) GetProductByID(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`,
		id,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return p, nil
}

// GetProductsByIDs возвращает товары по списку идентификаторов.
// Отсутствующие идентификаторы не считаются ошибкой: вызывающая сторона
// сверяет длину результата со списком запрошенных.
func (r *PostgresRepository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`,
		ids,
	)
	if err != nil {
		return nil, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	res := make(map[int64]model.Product, len(ids))
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		res[p.ID] = *p
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// ListProducts возвращает страницу товаров с опциональным фильтром по категории
// и общее количество подходящих товаров.
func (r *PostgresRepository) ListProducts(ctx context.Context, categoryID *int64, page, limit int) ([]model.Product, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE $1::bigint IS NULL OR category_id = $1`,
		categoryID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+`
		 FROM products
		 WHERE $1::bigint IS NULL OR category_id = $1
		 ORDER BY id
		 LIMIT $2 OFFSET $3`,
		categoryID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	var res []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan product: %w", err)
		}
		res = append(res, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return res, total, nil
}

// UpdateProduct частично обновляет товар: меняются только переданные поля.
func (r *PostgresRepository) UpdateProduct(ctx context.Context, id int64, upd ProductUpdate) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET name = COALESCE($2, name),
		     description = COALESCE($3, description),
		     price = COALESCE($4, price),
		     enabled = COALESCE($5, enabled),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, upd.Name, upd.Description, upd.Price, upd.Enabled,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("update product: %w", err)
	}

	return p, nil
}

// AdjustStock изменяет остаток товара на delta (может быть отрицательным).
// Ограничение stock_quantity >= 0 контролируется на уровне схемы.
func (r *PostgresRepository) AdjustStock(ctx context.Context, id int64, delta int) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE products
		 SET stock_quantity = stock_quantity + $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+productColumns,
		id, delta,
	)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrProductNotFound, id)
		}
		if isCheckViolation(err) {
			return nil, fmt.Errorf("%w: product %d", ErrInsufficientStock, id)
		}
		return nil, fmt.Errorf("adjust stock: %w", err)
	}

	return p, nil
}
