package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"fsanano/vending/internal/model"

	"github.com/google/uuid"
)

// MemoryRepository keeps users and products in process memory. Each
// conditional update checks and writes under one lock.
type MemoryRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]model.Product
	users    map[string]model.User
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		products: make(map[uuid.UUID]model.Product),
		users:    make(map[string]model.User),
	}
}

func (r *MemoryRepository) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.products[id]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	return p, nil
}

func (r *MemoryRepository) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	if p.AmountAvailable < quantity {
		return model.Product{}, model.ErrStockConflict
	}
	p.AmountAvailable -= quantity
	p.Sales++
	r.products[id] = p
	return p, nil
}

func (r *MemoryRepository) RestoreStock(ctx context.Context, id uuid.UUID, quantity int) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	p.AmountAvailable += quantity
	if p.Sales > 0 {
		p.Sales--
	}
	r.products[id] = p
	return p, nil
}

func (r *MemoryRepository) CreateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[p.Seller]; !ok {
		return model.Product{}, model.ErrUserNotFound
	}
	if r.nameTaken(p.Name, uuid.Nil) {
		return model.Product{}, model.ErrDuplicateName
	}
	p.ID = uuid.New()
	p.Sales = 0
	p.CreatedAt = time.Now().UTC()
	r.products[p.ID] = p
	return p, nil
}

func (r *MemoryRepository) UpdateProduct(ctx context.Context, p model.Product) (model.Product, error) {
	if err := ctx.Err(); err != nil {
		return model.Product{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.products[p.ID]
	if !ok {
		return model.Product{}, model.ErrProductNotFound
	}
	if r.nameTaken(p.Name, p.ID) {
		return model.Product{}, model.ErrDuplicateName
	}
	current.Name = p.Name
	current.Description = p.Description
	current.Cost = p.Cost
	current.AmountAvailable = p.AmountAvailable
	r.products[p.ID] = current
	return current, nil
}

// nameTaken must be called with mu held.
func (r *MemoryRepository) nameTaken(name string, except uuid.UUID) bool {
	for id, p := range r.products {
		if id != except && p.Name == name {
			return true
		}
	}
	return false
}

func (r *MemoryRepository) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.products[id]; !ok {
		return model.ErrProductNotFound
	}
	delete(r.products, id)
	return nil
}

func (r *MemoryRepository) ListProducts(ctx context.Context) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products := r.snapshot()
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (r *MemoryRepository) TopProducts(ctx context.Context, limit int) ([]model.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	products := r.snapshot()
	sort.Slice(products, func(i, j int) bool {
		if products[i].Sales != products[j].Sales {
			return products[i].Sales > products[j].Sales
		}
		return products[i].Name < products[j].Name
	})
	if len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

func (r *MemoryRepository) snapshot() []model.Product {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, p)
	}
	return out
}

func (r *MemoryRepository) GetUser(ctx context.Context, username string) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return u, nil
}

func (r *MemoryRepository) Debit(ctx context.Context, username string, amount int) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	if u.Deposit < amount {
		return model.User{}, model.ErrBalanceConflict
	}
	u.Deposit -= amount
	r.users[username] = u
	return u, nil
}

func (r *MemoryRepository) CreateUser(ctx context.Context, u model.User) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[u.Username]; ok {
		return model.User{}, model.ErrDuplicateUser
	}
	u.CreatedAt = time.Now().UTC()
	r.users[u.Username] = u
	return u, nil
}

func (r *MemoryRepository) AddDeposit(ctx context.Context, username string, amount int) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.Deposit += amount
	r.users[username] = u
	return u, nil
}

func (r *MemoryRepository) ResetDeposit(ctx context.Context, username string) (int, model.User, error) {
	if err := ctx.Err(); err != nil {
		return 0, model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return 0, model.User{}, model.ErrUserNotFound
	}
	previous := u.Deposit
	u.Deposit = 0
	r.users[username] = u
	return previous, u, nil
}

func (r *MemoryRepository) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	users := make([]model.User, 0, len(r.users))
	for _, u := range r.users {
		users = append(users, u)
	}
	r.mu.RUnlock()
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}

// DeleteUser removes the user together with the products they list.
func (r *MemoryRepository) DeleteUser(ctx context.Context, username string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[username]; !ok {
		return model.ErrUserNotFound
	}
	delete(r.users, username)
	for id, p := range r.products {
		if p.Seller == username {
			delete(r.products, id)
		}
	}
	return nil
}

func (r *MemoryRepository) SetDeposit(ctx context.Context, username string, amount int) (model.User, error) {
	if err := ctx.Err(); err != nil {
		return model.User{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[username]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	u.Deposit = amount
	r.users[username] = u
	return u, nil
}
