package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ecogrove/market/internal/services/cart"
	"github.com/ecogrove/market/internal/services/ledger"
)

// NewServer creates a configured *http.Server for the market API.
func NewServer(port uint16, ledgerSvc *ledger.Service, cartSvc *cart.Service) *http.Server {
	mux := NewRouter(ledgerSvc, cartSvc)

	addr := fmt.Sprintf(":%d", port)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
