package handler

import (
	"net/http"

	"fsanano/vending/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.market.ListProducts(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, products)
}

func (h *Handler) TopProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.market.TopProducts(r.Context())
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.market.GetProduct(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in service.ProductInput
	if err := decode(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	// The stored role is authoritative, not the one in the token.
	seller, err := h.market.GetUser(r.Context(), claimsFrom(r).Username)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	p, err := h.market.CreateProduct(r.Context(), seller, in)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, p)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	var patch service.ProductPatch
	if err := decode(r, &patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p, err := h.market.UpdateProduct(r.Context(), claimsFrom(r).Username, id, patch)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, p)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if err := h.market.DeleteProduct(r.Context(), claimsFrom(r).Username, id); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "product deleted"})
}

func productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return uuid.Nil, false
	}
	return id, true
}
