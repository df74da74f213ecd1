package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"fsanano/vending/internal/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
	pgFKViolation     = "23503"
)

const productColumns = "id, seller, name, description, cost, amount_available, sales, created_at"
const userColumns = "username, role, deposit, created_at"

type VendingRepository struct {
	db *pgxpool.Pool
}

func NewVendingRepository(db *pgxpool.Pool) *VendingRepository {
	return &VendingRepository{db: db}
}

// Migrate creates the tables if they do not exist yet.
func (r *VendingRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// RunAtomic executes fn within a transaction. Repository calls made with
// the ctx passed to fn run on that transaction.
func (r *VendingRepository) RunAtomic(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// no-op once committed
	defer tx.Rollback(ctx)

	ctx = context.WithValue(ctx, txKey{}, tx)

	if err := fn(ctx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

type txKey struct{}

func (r *VendingRepository) getExecutor(ctx context.Context) PgxExecutor {
	if tx, ok := ctx.Value(txKey{}).(pgx.Tx); ok {
		return tx
	}
	return r.db
}

// PgxExecutor is an interface that matches both *pgx.Conn/Pool and pgx.Tx
type PgxExecutor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (commandTag pgconn.CommandTag, err error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanProduct(row pgx.Row) (model.Product, error) {
	var p model.Product
	err := row.Scan(&p.ID, &p.Seller, &p.Name, &p.Description, &p.Cost, &p.AmountAvailable, &p.Sales, &p.CreatedAt)
	return p, err
}

func scanUser(row pgx.Row) (model.User, error) {
	var u model.User
	var role string
	if err := row.Scan(&u.Username, &role, &u.Deposit, &u.CreatedAt); err != nil {
		return model.User{}, err
	}
	parsed, err := model.ParseRole(role)
	if err != nil {
		return model.User{}, fmt.Errorf("stored user %s: %w", u.Username, err)
	}
	u.Role = parsed
	return u, nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// GetProduct returns the current product snapshot.
func (r *VendingRepository) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	p, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx,
		"SELECT "+productColumns+" FROM products WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, model.ErrProductNotFound
		}
		return model.Product{}, fmt.Errorf("failed to get product: %w", err)
	}
	return p, nil
}

// DecrementStock takes quantity units off the shelf and counts one sale,
// but only if at least quantity units are still available.
func (r *VendingRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error) {
	p, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE products
		SET amount_available = amount_available - $2, sales = sales + 1
		WHERE id = $1 AND amount_available >= $2
		RETURNING `+productColumns, id, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, r.productMissOr(ctx, id, model.ErrStockConflict)
		}
		return model.Product{}, fmt.Errorf("failed to decrement stock: %w", err)
	}
	return p, nil
}

// RestoreStock reverses a DecrementStock.
func (r *VendingRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error) {
	p, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE products
		SET amount_available = amount_available + $2, sales = GREATEST(sales - 1, 0)
		WHERE id = $1
		RETURNING `+productColumns, id, quantity))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, model.ErrProductNotFound
		}
		return model.Product{}, fmt.Errorf("failed to restore stock: %w", err)
	}
	return p, nil
}

// productMissOr tells a missing product apart from a failed precondition.
func (r *VendingRepository) productMissOr(ctx context.Context, id uuid.UUID, conflict error) error {
	var exists bool
	err := r.getExecutor(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM products WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check product: %w", err)
	}
	if !exists {
		return model.ErrProductNotFound
	}
	return conflict
}

// CreateProduct inserts a new listing and assigns its id.
func (r *VendingRepository) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	created, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, `
		INSERT INTO products (id, seller, name, description, cost, amount_available)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+productColumns,
		uuid.New(), p.Seller, p.Name, p.Description, p.Cost, p.AmountAvailable))
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return model.Product{}, model.ErrDuplicateName
		case pgCheckViolation:
			return model.Product{}, fmt.Errorf("%w: %v", model.ErrInvalidProduct, err)
		case pgFKViolation:
			return model.Product{}, model.ErrUserNotFound
		}
		return model.Product{}, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

// UpdateProduct overwrites the seller-editable fields.
func (r *VendingRepository) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	updated, err := scanProduct(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE products
		SET name = $2, description = $3, cost = $4, amount_available = $5
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Cost, p.AmountAvailable))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Product{}, model.ErrProductNotFound
		}
		switch pgCode(err) {
		case pgUniqueViolation:
			return model.Product{}, model.ErrDuplicateName
		case pgCheckViolation:
			return model.Product{}, fmt.Errorf("%w: %v", model.ErrInvalidProduct, err)
		}
		return model.Product{}, fmt.Errorf("failed to update product: %w", err)
	}
	return updated, nil
}

func (r *VendingRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrProductNotFound
	}
	return nil
}

// ListProducts returns every product ordered by name.
func (r *VendingRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	return r.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY name")
}

// TopProducts returns the best sellers, most sales first.
func (r *VendingRepository) TopProducts(ctx context.Context, limit int) ([]model.Product, error) {
	return r.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY sales DESC, name LIMIT $1", limit)
}

func (r *VendingRepository) queryProducts(ctx context.Context, sql string, args ...any) ([]model.Product, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Product, error) {
		return scanProduct(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan products: %w", err)
	}
	return products, nil
}

// GetUser returns the current user snapshot.
func (r *VendingRepository) GetUser(ctx context.Context, username string) (model.User, error) {
	u, err := scanUser(r.getExecutor(ctx).QueryRow(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// Debit subtracts amount from the deposit, but only if the deposit covers it.
func (r *VendingRepository) Debit(ctx context.Context, username string, amount int) (model.User, error) {
	u, err := scanUser(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE users SET deposit = deposit - $2
		WHERE username = $1 AND deposit >= $2
		RETURNING `+userColumns, username, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, r.userMissOr(ctx, username, model.ErrBalanceConflict)
		}
		return model.User{}, fmt.Errorf("failed to debit user: %w", err)
	}
	return u, nil
}

func (r *VendingRepository) userMissOr(ctx context.Context, username string, conflict error) error {
	var exists bool
	err := r.getExecutor(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE username = $1)", username).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return model.ErrUserNotFound
	}
	return conflict
}

func (r *VendingRepository) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	created, err := scanUser(r.getExecutor(ctx).QueryRow(ctx, `
		INSERT INTO users (username, role, deposit) VALUES ($1, $2, $3)
		RETURNING `+userColumns, u.Username, u.Role.String(), u.Deposit))
	if err != nil {
		switch pgCode(err) {
		case pgUniqueViolation:
			return model.User{}, model.ErrDuplicateUser
		case pgCheckViolation:
			return model.User{}, fmt.Errorf("%w: %v", model.ErrInvalidUser, err)
		}
		return model.User{}, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

// AddDeposit credits amount to the user's deposit.
func (r *VendingRepository) AddDeposit(ctx context.Context, username string, amount int) (model.User, error) {
	u, err := scanUser(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE users SET deposit = deposit + $2
		WHERE username = $1
		RETURNING `+userColumns, username, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to add deposit: %w", err)
	}
	return u, nil
}

// ResetDeposit zeroes the deposit and reports what it held before.
func (r *VendingRepository) ResetDeposit(ctx context.Context, username string) (int, model.User, error) {
	var previous int
	var u model.User
	var role string
	err := r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE users u SET deposit = 0
		FROM (SELECT username, deposit FROM users WHERE username = $1 FOR UPDATE) old
		WHERE u.username = old.username
		RETURNING old.deposit, u.username, u.role, u.deposit, u.created_at`, username).
		Scan(&previous, &u.Username, &role, &u.Deposit, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, model.User{}, model.ErrUserNotFound
		}
		return 0, model.User{}, fmt.Errorf("failed to reset deposit: %w", err)
	}
	if u.Role, err = model.ParseRole(role); err != nil {
		return 0, model.User{}, fmt.Errorf("stored user %s: %w", u.Username, err)
	}
	return previous, u, nil
}

// ListUsers returns every account ordered by username.
func (r *VendingRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := r.getExecutor(ctx).Query(ctx, "SELECT "+userColumns+" FROM users ORDER BY username")
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.User, error) {
		return scanUser(row)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan users: %w", err)
	}
	return users, nil
}

// DeleteUser removes the account. Its products go with it (ON DELETE CASCADE).
func (r *VendingRepository) DeleteUser(ctx context.Context, username string) error {
	tag, err := r.getExecutor(ctx).Exec(ctx, "DELETE FROM users WHERE username = $1", username)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// SetDeposit overwrites the deposit with amount.
func (r *VendingRepository) SetDeposit(ctx context.Context, username string, amount int) (model.User, error) {
	u, err := scanUser(r.getExecutor(ctx).QueryRow(ctx, `
		UPDATE users SET deposit = $2
		WHERE username = $1
		RETURNING `+userColumns, username, amount))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, model.ErrUserNotFound
		}
		return model.User{}, fmt.Errorf("failed to set deposit: %w", err)
	}
	return u, nil
}
