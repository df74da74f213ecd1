package handler

import (
	"net/http"

	"fsanano/vending/internal/coin"
	"fsanano/vending/internal/model"
	"fsanano/vending/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type BuyRequest struct {
	Quantity int `json:"quantity"`
}

type receipt struct {
	Gross    int            `json:"gross"`
	Exchange int            `json:"exchange"`
	Change   coin.Breakdown `json:"change"`
	Product  model.Product  `json:"product"`
	Deposit  int            `json:"deposit"`
}

type stockShortage struct {
	Available int `json:"available"`
}

type depositShortage struct {
	Deposit int `json:"deposit"`
	Gross   int `json:"gross"`
}

func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	var req BuyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	intent, rejected := service.ParseIntent(claimsFrom(r).Username, chi.URLParam(r, "id"), req.Quantity)
	if rejected != nil {
		h.writeResult(w, r, rejected)
		return
	}
	h.writeResult(w, r, h.purchases.Purchase(r.Context(), intent))
}

func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, res service.PurchaseResult) {
	switch res := res.(type) {
	case *service.Success:
		writeData(w, http.StatusOK, receipt{
			Gross:    res.Gross,
			Exchange: res.Exchange,
			Change:   res.Breakdown,
			Product:  res.Product,
			Deposit:  res.Deposit,
		})
	case *service.Rejected:
		writeJSON(w, rejectionStatus(res.Reason), response{
			Status: false,
			Data:   rejectionDetail(res),
			Error:  res.Message(),
			Reason: res.Reason.String(),
		})
	case *service.Failed:
		h.logger.Error("purchase failed",
			zap.String("request_id", requestID(r)),
			zap.Stringer("cause", res.Cause),
			zap.Error(res.Err))
		status := http.StatusInternalServerError
		if res.Cause == service.CauseTimeout {
			status = http.StatusGatewayTimeout
		}
		writeJSON(w, status, response{Status: false, Error: "purchase could not be completed", Reason: res.Cause.String()})
	}
}

// rejectionDetail carries the figures the buyer needs to correct the
// request. Zero is a meaningful value here.
func rejectionDetail(res *service.Rejected) any {
	switch res.Reason {
	case service.ReasonInsufficientStock:
		return stockShortage{Available: res.Available}
	case service.ReasonInsufficientDeposit:
		return depositShortage{Deposit: res.Deposit, Gross: res.Gross}
	}
	return nil
}

func rejectionStatus(reason service.Reason) int {
	switch reason {
	case service.ReasonProductNotFound, service.ReasonUserNotFound:
		return http.StatusNotFound
	case service.ReasonConflict:
		return http.StatusConflict
	case service.ReasonRoleNotAllowed:
		return http.StatusForbidden
	}
	return http.StatusBadRequest
}
