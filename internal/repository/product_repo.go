package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-pharmacy-catalog/internal/model"
)

const productColumns = `id, medicine_name, description, price, image, thumbnail, dosage_form,
	uses, manufacturer, expiry_date, drug_number, created_at, updated_at`

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, p model.Product) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (`+productColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.MedicineName, p.Description, p.Price, p.Image, p.Thumbnail, p.DosageForm,
		p.Uses, p.Manufacturer, p.ExpiryDate, p.DrugNumber, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return storeError("create product", err)
	}
	return nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, model.ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, storeError("get product", err)
	}
	return p, nil
}

func (r *ProductRepository) List(ctx context.Context) ([]model.Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, storeError("list products", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, storeError("scan product", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list products", err)
	}
	return products, nil
}

// Update locks the row, lets mutate edit a copy and writes it back within a
// single transaction. It returns the row as it was before mutate ran.
func (r *ProductRepository) Update(ctx context.Context, id string, mutate func(*model.Product) error) (model.Product, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return model.Product{}, storeError("begin update product", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	before, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, model.ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, storeError("load product for update", err)
	}

	after := before
	if err := mutate(&after); err != nil {
		return model.Product{}, err
	}

	_, err = tx.Exec(ctx,
		`UPDATE products SET medicine_name = $2, description = $3, price = $4, image = $5,
		        thumbnail = $6, dosage_form = $7, uses = $8, manufacturer = $9,
		        expiry_date = $10, drug_number = $11, updated_at = $12
		 WHERE id = $1`,
		id, after.MedicineName, after.Description, after.Price, after.Image, after.Thumbnail,
		after.DosageForm, after.Uses, after.Manufacturer, after.ExpiryDate, after.DrugNumber, after.UpdatedAt)
	if err != nil {
		return model.Product{}, storeError("update product", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Product{}, storeError("commit update product", err)
	}
	return before, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (model.Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx,
		`DELETE FROM products WHERE id = $1 RETURNING `+productColumns, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Product{}, model.ErrProductNotFound
	}
	if err != nil {
		return model.Product{}, storeError("delete product", err)
	}
	return p, nil
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.MedicineName, &p.Description, &p.Price, &p.Image, &p.Thumbnail,
		&p.DosageForm, &p.Uses, &p.Manufacturer, &p.ExpiryDate, &p.DrugNumber, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}
