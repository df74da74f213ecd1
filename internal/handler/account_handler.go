package handler

import (
	"net/http"

	"fsanano/vending/internal/model"
	"fsanano/vending/internal/service"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

type DepositRequest struct {
	Coin int `json:"coin"`
}

type accountView struct {
	User   model.User      `json:"user"`
	Refund *service.Refund `json:"refund,omitempty"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	role, err := model.ParseRole(req.Role)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	u, err := h.market.RegisterUser(r.Context(), req.Username, role)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, accountView{User: u})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.market.GetUser(r.Context(), claimsFrom(r).Username)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u})
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.market.Deposit(r.Context(), claimsFrom(r).Username, req.Coin)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u})
}

func (h *Handler) ResetDeposit(w http.ResponseWriter, r *http.Request) {
	u, refund, err := h.market.ResetDeposit(r.Context(), claimsFrom(r).Username)
	if err != nil {
		h.writeStoreError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, accountView{User: u, Refund: &refund})
}
