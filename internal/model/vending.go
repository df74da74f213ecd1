package model

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrDuplicateName   = errors.New("product name already taken")
	ErrDuplicateUser   = errors.New("username already taken")
	ErrNotOwner        = errors.New("product belongs to another seller")

	// ErrStockConflict is returned by a conditional stock decrement when
	// the product no longer holds the requested quantity.
	ErrStockConflict = errors.New("stock changed concurrently")
	// ErrBalanceConflict is returned by a conditional debit when the
	// deposit no longer covers the amount.
	ErrBalanceConflict = errors.New("deposit changed concurrently")

	ErrInvalidProduct = errors.New("invalid product")
	ErrInvalidUser    = errors.New("invalid user")
	ErrInvalidRole    = errors.New("invalid role")
)

const (
	MaxAmountAvailable = 10
	CostStep           = 5
)

type Product struct {
	ID              uuid.UUID `json:"id"`
	Seller          string    `json:"seller"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	Cost            int       `json:"cost"`
	AmountAvailable int       `json:"amount_available"`
	Sales           int       `json:"sales"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks the listing fields a seller controls.
func (p Product) Validate() error {
	if n := utf8.RuneCountInString(p.Name); n < 2 || n > 50 {
		return fmt.Errorf("%w: name must be 2-50 characters", ErrInvalidProduct)
	}
	if n := utf8.RuneCountInString(p.Description); n < 5 || n > 100 {
		return fmt.Errorf("%w: description must be 5-100 characters", ErrInvalidProduct)
	}
	if p.Cost <= 0 || p.Cost%CostStep != 0 {
		return fmt.Errorf("%w: cost must be a positive multiple of %d", ErrInvalidProduct, CostStep)
	}
	if p.AmountAvailable < 0 || p.AmountAvailable > MaxAmountAvailable {
		return fmt.Errorf("%w: amount available must be between 0 and %d", ErrInvalidProduct, MaxAmountAvailable)
	}
	return nil
}

type User struct {
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	Deposit   int       `json:"deposit"`
	CreatedAt time.Time `json:"created_at"`
}

// ValidUsername reports whether name fits the 2-4 character username rule.
func ValidUsername(name string) bool {
	n := utf8.RuneCountInString(name)
	return n >= 2 && n <= 4
}
