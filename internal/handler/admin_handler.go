package handler

import (
	"context"
	"fmt"
	"net/http"

	"fsanano/vending/internal/model"

	"github.com/go-chi/chi/v5"
)

type SetDepositRequest struct {
	Deposit int `json:"deposit"`
}

type actorKey struct{}

// loadActor resolves the caller's stored account. Roles are taken from the
// store, not from the token.
func (h *Handler) loadActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, err := h.market.GetUser(r.Context(), claimsFrom(r).Username)
		if err != nil {
			h.writeStoreError(w, r, err)
			return
		}
		ctx := context.WithValue(r.Context(), actorKey{}, u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (h *Handler) adminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !actorFrom(r).Role.CanAdminister() {
			h.writeStoreError(w, r, fmt.Errorf("%w: admin only", model.ErrInvalidRole))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorFrom(r *http.Request) model.User {
	u, _ := r.Context().Value(actorKey{}).(model.User)
	return u
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.market.ListUsers(r.Context(), actorFrom(r))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, users)
}

func (h *Handler) AdminSetDeposit(w http.ResponseWriter, r *http.Request) {
	var req SetDepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.market.SetDeposit(r.Context(), actorFrom(r), chi.URLParam(r, "username"), req.Deposit)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u})
}

func (h *Handler) AdminDeposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.market.DepositFor(r.Context(), actorFrom(r), chi.URLParam(r, "username"), req.Coin)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u})
}

func (h *Handler) AdminResetDeposit(w http.ResponseWriter, r *http.Request) {
	u, refund, err := h.market.ResetDepositFor(r.Context(), actorFrom(r), chi.URLParam(r, "username"))
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u, Refund: &refund})
}

func (h *Handler) AdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.market.DeleteUser(r.Context(), actorFrom(r), chi.URLParam(r, "username")); err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, map[string]string{"message": "user deleted"})
}
