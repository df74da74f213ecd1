package service

import (
	"fmt"

	"fsanano/vending/internal/coin"
	"fsanano/vending/internal/model"
)

// PurchaseResult is one of *Success, *Rejected or *Failed.
type PurchaseResult interface {
	isPurchaseResult()
}

// Success is a committed purchase.
type Success struct {
	Gross     int
	Exchange  int
	Breakdown coin.Breakdown
	Product   model.Product
	Deposit   int
}

// Rejected is a purchase refused before or while committing. Nothing was
// charged.
type Rejected struct {
	Reason    Reason
	Available int
	Deposit   int
	Gross     int
}

// Failed is a purchase that could not be completed because of the stores.
type Failed struct {
	Cause Cause
	Err   error
}

func (*Success) isPurchaseResult()  {}
func (*Rejected) isPurchaseResult() {}
func (*Failed) isPurchaseResult()   {}

type Reason int

const (
	ReasonUnavailable Reason = iota + 1
	ReasonInsufficientStock
	ReasonInsufficientDeposit
	ReasonInvalidBuyer
	ReasonInvalidProductID
	ReasonInvalidQuantity
	ReasonProductNotFound
	ReasonUserNotFound
	ReasonConflict
	ReasonNoExactChange
	ReasonRoleNotAllowed
)

func (r Reason) String() string {
	switch r {
	case ReasonUnavailable:
		return "unavailable"
	case ReasonInsufficientStock:
		return "insufficient_stock"
	case ReasonInsufficientDeposit:
		return "insufficient_deposit"
	case ReasonInvalidBuyer:
		return "invalid_buyer"
	case ReasonInvalidProductID:
		return "invalid_product_id"
	case ReasonInvalidQuantity:
		return "invalid_quantity"
	case ReasonProductNotFound:
		return "product_not_found"
	case ReasonUserNotFound:
		return "user_not_found"
	case ReasonConflict:
		return "conflict"
	case ReasonNoExactChange:
		return "no_exact_change"
	case ReasonRoleNotAllowed:
		return "role_not_allowed"
	}
	return fmt.Sprintf("reason(%d)", int(r))
}

// Message is the user-facing explanation, with the figures the caller
// needs to correct the request.
func (r *Rejected) Message() string {
	switch r.Reason {
	case ReasonUnavailable:
		return "this product is not available"
	case ReasonInsufficientStock:
		return fmt.Sprintf("not enough items in stock, currently max: %d", r.Available)
	case ReasonInsufficientDeposit:
		return fmt.Sprintf("deposit is not enough: you have %d and the gross total is %d", r.Deposit, r.Gross)
	case ReasonInvalidBuyer:
		return "invalid buyer"
	case ReasonInvalidProductID:
		return "invalid product id"
	case ReasonInvalidQuantity:
		return "quantity must be a positive number"
	case ReasonProductNotFound:
		return "product not found"
	case ReasonUserNotFound:
		return "user not found"
	case ReasonConflict:
		return "stock or deposit changed concurrently, please retry"
	case ReasonNoExactChange:
		return "unable to return exact change, try another quantity"
	case ReasonRoleNotAllowed:
		return "this account cannot make purchases"
	}
	return r.Reason.String()
}

type Cause int

const (
	CauseStoreUnavailable Cause = iota + 1
	CauseTimeout
	// CausePartialCommit means stock was taken but the buyer was not
	// charged and the stock could not be put back.
	CausePartialCommit
)

func (c Cause) String() string {
	switch c {
	case CauseStoreUnavailable:
		return "store_unavailable"
	case CauseTimeout:
		return "timeout"
	case CausePartialCommit:
		return "partial_commit"
	}
	return fmt.Sprintf("cause(%d)", int(c))
}

func (f *Failed) Error() string {
	return fmt.Sprintf("purchase failed (%s): %v", f.Cause, f.Err)
}

func (f *Failed) Unwrap() error {
	return f.Err
}
