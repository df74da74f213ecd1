package service

import (
	"context"
	"errors"
	"fmt"

	"fsanano/vending/internal/coin"
	"fsanano/vending/internal/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const TopProductsLimit = 10

var (
	ErrInvalidCoin    = errors.New("deposit must be a single 5, 10, 20, 50 or 100 coin")
	ErrInvalidDeposit = errors.New("deposit must be 0, 5, 10, 20, 50 or 100")
)

// MarketStore is the CRUD side of the product and user stores.
type MarketStore interface {
	GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error)
	CreateProduct(ctx context.Context, p model.Product) (model.Product, error)
	UpdateProduct(ctx context.Context, p model.Product) (model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID) error
	ListProducts(ctx context.Context) ([]model.Product, error)
	TopProducts(ctx context.Context, limit int) ([]model.Product, error)

	GetUser(ctx context.Context, username string) (model.User, error)
	CreateUser(ctx context.Context, u model.User) (model.User, error)
	AddDeposit(ctx context.Context, username string, amount int) (model.User, error)
	ResetDeposit(ctx context.Context, username string) (int, model.User, error)
	SetDeposit(ctx context.Context, username string, amount int) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	DeleteUser(ctx context.Context, username string) error
}

type MarketService struct {
	store  MarketStore
	logger *zap.Logger
}

func NewMarketService(store MarketStore, logger *zap.Logger) *MarketService {
	return &MarketService{store: store, logger: logger}
}

// ProductInput carries the fields a seller sets on a listing.
type ProductInput struct {
	Name            string `json:"name"`
	Description     string `json:"description"`
	Cost            int    `json:"cost"`
	AmountAvailable int    `json:"amount_available"`
}

// ProductPatch carries the listing fields to change. Nil fields are kept.
type ProductPatch struct {
	Name            *string `json:"name"`
	Description     *string `json:"description"`
	Cost            *int    `json:"cost"`
	AmountAvailable *int    `json:"amount_available"`
}

func (p ProductPatch) apply(dst *model.Product) {
	if p.Name != nil {
		dst.Name = *p.Name
	}
	if p.Description != nil {
		dst.Description = *p.Description
	}
	if p.Cost != nil {
		dst.Cost = *p.Cost
	}
	if p.AmountAvailable != nil {
		dst.AmountAvailable = *p.AmountAvailable
	}
}

// Refund is what a reset hands back. Coins is empty when Amount cannot be
// paid in whole coins.
type Refund struct {
	Amount int            `json:"amount"`
	Coins  coin.Breakdown `json:"coins"`
}

func (s *MarketService) RegisterUser(ctx context.Context, username string, role model.Role) (model.User, error) {
	if !model.ValidUsername(username) {
		return model.User{}, fmt.Errorf("%w: username must be 2-4 characters", model.ErrInvalidUser)
	}
	// Admin accounts are provisioned out of band.
	switch role {
	case model.RoleBuyer, model.RoleSeller:
	case model.RoleAdmin:
		return model.User{}, fmt.Errorf("%w: admin accounts cannot self-register", model.ErrInvalidRole)
	default:
		return model.User{}, model.ErrInvalidRole
	}

	u, err := s.store.CreateUser(ctx, model.User{Username: username, Role: role})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("user registered", zap.String("username", username), zap.Stringer("role", role))
	return u, nil
}

func (s *MarketService) GetUser(ctx context.Context, username string) (model.User, error) {
	return s.store.GetUser(ctx, username)
}

// Deposit adds one coin to the user's balance.
func (s *MarketService) Deposit(ctx context.Context, username string, amount int) (model.User, error) {
	if !coin.IsCoin(amount) {
		return model.User{}, ErrInvalidCoin
	}
	return s.store.AddDeposit(ctx, username, amount)
}

// ResetDeposit empties the user's balance and returns the coins handed back.
func (s *MarketService) ResetDeposit(ctx context.Context, username string) (model.User, Refund, error) {
	previous, u, err := s.store.ResetDeposit(ctx, username)
	if err != nil {
		return model.User{}, Refund{}, err
	}
	refund := Refund{Amount: previous}
	coins, err := coin.ChangeFor(previous)
	if err != nil {
		// The balance is already zero; report the raw amount instead of failing.
		s.logger.Warn("refund not payable in coins",
			zap.String("username", username),
			zap.Int("refund", previous),
			zap.Error(err))
	} else {
		refund.Coins = coins
	}
	s.logger.Info("deposit reset", zap.String("username", username), zap.Int("refund", previous))
	return u, refund, nil
}

// ListUsers returns every account to an admin and only their own account to
// anyone else.
func (s *MarketService) ListUsers(ctx context.Context, actor model.User) ([]model.User, error) {
	switch actor.Role {
	case model.RoleAdmin:
		return s.store.ListUsers(ctx)
	case model.RoleBuyer, model.RoleSeller:
		self, err := s.store.GetUser(ctx, actor.Username)
		if err != nil {
			return nil, err
		}
		return []model.User{self}, nil
	}
	return nil, model.ErrInvalidRole
}

// DepositFor adds one coin to another user's balance on an admin's behalf.
func (s *MarketService) DepositFor(ctx context.Context, actor model.User, username string, amount int) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	u, err := s.Deposit(ctx, username, amount)
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("deposit added by admin",
		zap.String("admin", actor.Username),
		zap.String("username", username),
		zap.Int("coin", amount))
	return u, nil
}

func (s *MarketService) ResetDepositFor(ctx context.Context, actor model.User, username string) (model.User, Refund, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, Refund{}, err
	}
	return s.ResetDeposit(ctx, username)
}

// SetDeposit overwrites a user's balance with a single coin value or zero.
func (s *MarketService) SetDeposit(ctx context.Context, actor model.User, username string, amount int) (model.User, error) {
	if err := requireAdmin(actor); err != nil {
		return model.User{}, err
	}
	if !coin.IsDepositValue(amount) {
		return model.User{}, ErrInvalidDeposit
	}
	u, err := s.store.SetDeposit(ctx, username, amount)
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("deposit set",
		zap.String("admin", actor.Username),
		zap.String("username", username),
		zap.Int("deposit", amount))
	return u, nil
}

// DeleteUser removes an account and every product it lists.
func (s *MarketService) DeleteUser(ctx context.Context, actor model.User, username string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.logger.Info("user deleted", zap.String("admin", actor.Username), zap.String("username", username))
	return nil
}

// EnsureAdmin creates the admin account if it does not exist yet.
func (s *MarketService) EnsureAdmin(ctx context.Context, username string) (model.User, error) {
	if !model.ValidUsername(username) {
		return model.User{}, fmt.Errorf("%w: username must be 2-4 characters", model.ErrInvalidUser)
	}
	u, err := s.store.GetUser(ctx, username)
	switch {
	case err == nil:
		if !u.Role.CanAdminister() {
			return model.User{}, fmt.Errorf("%w: %s exists as %s", model.ErrInvalidRole, username, u.Role)
		}
		return u, nil
	case errors.Is(err, model.ErrUserNotFound):
	default:
		return model.User{}, err
	}

	u, err = s.store.CreateUser(ctx, model.User{Username: username, Role: model.RoleAdmin})
	if err != nil {
		return model.User{}, err
	}
	s.logger.Info("admin provisioned", zap.String("username", username))
	return u, nil
}

func requireAdmin(actor model.User) error {
	if !actor.Role.CanAdminister() {
		return fmt.Errorf("%w: admin only", model.ErrInvalidRole)
	}
	return nil
}

func (s *MarketService) CreateProduct(ctx context.Context, seller model.User, in ProductInput) (model.Product, error) {
	if !seller.Role.CanSell() {
		return model.Product{}, fmt.Errorf("%w: only sellers can list products", model.ErrInvalidRole)
	}
	p := model.Product{
		Seller:          seller.Username,
		Name:            in.Name,
		Description:     in.Description,
		Cost:            in.Cost,
		AmountAvailable: in.AmountAvailable,
	}
	if err := p.Validate(); err != nil {
		return model.Product{}, err
	}
	created, err := s.store.CreateProduct(ctx, p)
	if err != nil {
		return model.Product{}, err
	}
	s.logger.Info("product created", zap.Stringer("product_id", created.ID), zap.String("seller", seller.Username))
	return created, nil
}

// UpdateProduct changes the patched fields of a product the seller owns.
func (s *MarketService) UpdateProduct(ctx context.Context, seller string, id uuid.UUID, patch ProductPatch) (model.Product, error) {
	current, err := s.owned(ctx, seller, id)
	if err != nil {
		return model.Product{}, err
	}
	patch.apply(&current)
	if err := current.Validate(); err != nil {
		return model.Product{}, err
	}
	return s.store.UpdateProduct(ctx, current)
}

func (s *MarketService) DeleteProduct(ctx context.Context, seller string, id uuid.UUID) error {
	if _, err := s.owned(ctx, seller, id); err != nil {
		return err
	}
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logger.Info("product deleted", zap.Stringer("product_id", id), zap.String("seller", seller))
	return nil
}

func (s *MarketService) owned(ctx context.Context, seller string, id uuid.UUID) (model.Product, error) {
	p, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return model.Product{}, err
	}
	if p.Seller != seller {
		return model.Product{}, model.ErrNotOwner
	}
	return p, nil
}

func (s *MarketService) GetProduct(ctx context.Context, id uuid.UUID) (model.Product, error) {
	return s.store.GetProduct(ctx, id)
}

func (s *MarketService) ListProducts(ctx context.Context) ([]model.Product, error) {
	return s.store.ListProducts(ctx)
}

func (s *MarketService) TopProducts(ctx context.Context) ([]model.Product, error) {
	return s.store.TopProducts(ctx, TopProductsLimit)
}
