package service

import (
	"fsanano/vending/internal/model"

	"github.com/google/uuid"
)

// PurchaseIntent is a typed, boundary-checked purchase request.
type PurchaseIntent struct {
	Buyer     string
	ProductID uuid.UUID
	Quantity  int
}

// ParseIntent checks the raw request fields. It returns a rejection for
// malformed identifiers or quantities.
func ParseIntent(buyer, productID string, quantity int) (PurchaseIntent, *Rejected) {
	if !model.ValidUsername(buyer) {
		return PurchaseIntent{}, &Rejected{Reason: ReasonInvalidBuyer}
	}
	id, err := uuid.Parse(productID)
	if err != nil {
		return PurchaseIntent{}, &Rejected{Reason: ReasonInvalidProductID}
	}
	if quantity <= 0 {
		return PurchaseIntent{}, &Rejected{Reason: ReasonInvalidQuantity}
	}
	return PurchaseIntent{Buyer: buyer, ProductID: id, Quantity: quantity}, nil
}

// Quote is the money side of a purchase that passed validation.
type Quote struct {
	Gross    int
	Exchange int
}

// Validate checks a purchase against the product and buyer snapshots, in
// order: availability, stock, deposit.
func Validate(product model.Product, user model.User, quantity int) (Quote, *Rejected) {
	if product.AmountAvailable == 0 {
		return Quote{}, &Rejected{Reason: ReasonUnavailable}
	}
	if quantity > product.AmountAvailable {
		return Quote{}, &Rejected{Reason: ReasonInsufficientStock, Available: product.AmountAvailable}
	}
	gross := product.Cost * quantity
	if gross > user.Deposit {
		return Quote{}, &Rejected{Reason: ReasonInsufficientDeposit, Deposit: user.Deposit, Gross: gross}
	}
	return Quote{Gross: gross, Exchange: user.Deposit - gross}, nil
}
