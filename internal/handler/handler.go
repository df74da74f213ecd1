package handler

import (
	"io"
	"net/http"

	"fsanano/vending/internal/service"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type Handler struct {
	router    *chi.Mux
	purchases *service.PurchaseService
	market    *service.MarketService
	auth      *Authenticator
	logger    *zap.Logger
}

func NewHandler(purchases *service.PurchaseService, market *service.MarketService, auth *Authenticator, logger *zap.Logger) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	compressor := middleware.NewCompressor(5, "application/json")
	compressor.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	router.Use(compressor.Handler)

	h := &Handler{
		router:    router,
		purchases: purchases,
		market:    market,
		auth:      auth,
		logger:    logger,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Post("/users", h.Register)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Middleware)

			r.Get("/users/me", h.Me)
			r.Put("/users/me/deposit", h.Deposit)
			r.Put("/users/me/reset", h.ResetDeposit)

			r.Get("/products", h.ListProducts)
			r.Get("/products/top", h.TopProducts)
			r.Post("/products", h.CreateProduct)
			r.Get("/products/{id}", h.GetProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)
			r.Post("/products/{id}/buy", h.Buy)

			r.With(h.loadActor).Get("/users", h.ListUsers)

			r.Route("/admin/users", func(r chi.Router) {
				r.Use(h.loadActor, h.adminOnly)

				r.Get("/", h.ListUsers)
				r.Put("/{username}", h.AdminSetDeposit)
				r.Put("/{username}/deposit", h.AdminDeposit)
				r.Put("/{username}/reset", h.AdminResetDeposit)
				r.Delete("/{username}", h.AdminDeleteUser)
			})
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
