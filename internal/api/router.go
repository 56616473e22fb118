package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ecogrove/market/internal/services/cart"
	"github.com/ecogrove/market/internal/services/ledger"
)

// NewRouter registers every core operation on a chi router.
func NewRouter(ledgerSvc *ledger.Service, cartSvc *cart.Service) http.Handler {
	h := NewHandler(ledgerSvc, cartSvc)
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/signup", h.SignupHandler)
	r.Post("/login", h.LoginHandler)
	r.Post("/logout", h.LogoutHandler)
	r.Get("/me", h.MeHandler)
	r.Get("/accounts", h.AccountsHandler)

	r.Post("/wallet/topup", h.TopUpHandler)
	r.Post("/wallet/deduct", h.DeductHandler)
	r.Post("/wallet/transfer", h.TransferHandler)

	r.Get("/cart", h.CartHandler)
	r.Delete("/cart", h.ClearCartHandler)
	r.Post("/cart/items", h.AddUnitHandler)
	r.Delete("/cart/items/{productID}", h.RemoveAllUnitsHandler)
	r.Put("/cart/items/{productID}/quantity", h.SetQuantityHandler)
	r.Post("/cart/items/{productID}/increment", h.IncrementUnitHandler)
	r.Post("/cart/items/{productID}/decrement", h.DecrementUnitHandler)

	return r
}
