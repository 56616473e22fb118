package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/ecogrove/market/internal/services/cart"
	"github.com/ecogrove/market/internal/services/ledger"
)

// HandlerProvider wraps the two core services and exposes HTTP handlers.
type HandlerProvider struct {
	ledger *ledger.Service
	cart   *cart.Service
}

func NewHandler(ledgerSvc *ledger.Service, cartSvc *cart.Service) *HandlerProvider {
	return &HandlerProvider{ledger: ledgerSvc, cart: cartSvc}
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB cap
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "empty body")
			return false
		}

		writeError(w, http.StatusBadRequest, "invalid JSON")

		return false
	}

	return true
}

// parseAmount accepts a decimal string and rejects anything negative or
// unparsable before it reaches the services.
func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}

	if amount.IsNegative() {
		return decimal.Zero, ledger.ErrInvalidAmount
	}

	return amount, nil
}

// accountView is the wire shape of an account. The credential never
// leaves the service boundary.
type accountView struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Balance  string `json:"balance"`
	Role     string `json:"role"`
	Tier     string `json:"tier"`
}

func toAccountView(a ledger.Account) accountView {
	return accountView{
		ID:       a.ID,
		Username: a.Username,
		Balance:  a.Balance.StringFixed(2),
		Role:     string(a.Role),
		Tier:     a.Tier().String(),
	}
}

func (h *HandlerProvider) writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrNotLoggedIn):
		writeError(w, http.StatusUnauthorized, "not logged in")
	case errors.Is(err, ledger.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, ledger.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, "username already taken")
	case errors.Is(err, ledger.ErrAccountNotFound):
		writeError(w, http.StatusNotFound, "account not found")
	case errors.Is(err, ledger.ErrRecipientNotFound):
		writeError(w, http.StatusNotFound, "recipient not found")
	case errors.Is(err, ledger.ErrSelfTransfer):
		writeError(w, http.StatusConflict, "cannot transfer to yourself")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		writeError(w, http.StatusConflict, "insufficient funds")
	case errors.Is(err, ledger.ErrInvalidAmount):
		writeError(w, http.StatusBadRequest, "invalid amount")
	default:
		slog.Error("ledger operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// --- Ledger handlers ---

type credentialsRequest struct {
	Username   string `json:"username"`
	Credential string `json:"credential"`
}

// SignupHandler handles POST /signup
func (h *HandlerProvider) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.Username == "" || req.Credential == "" {
		writeError(w, http.StatusBadRequest, "username and credential required")
		return
	}

	acc, err := h.ledger.CreateAccount(r.Context(), req.Username, req.Credential)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountView(acc))
}

// LoginHandler handles POST /login
func (h *HandlerProvider) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	acc, err := h.ledger.Authenticate(r.Context(), req.Username, req.Credential)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountView(acc))
}

// LogoutHandler handles POST /logout
func (h *HandlerProvider) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	err := h.ledger.Logout(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MeHandler handles GET /me
func (h *HandlerProvider) MeHandler(w http.ResponseWriter, r *http.Request) {
	acc, err := h.ledger.CurrentAccount(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountView(acc))
}

// AccountsHandler handles GET /accounts
func (h *HandlerProvider) AccountsHandler(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.ledger.Accounts(r.Context())
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	views := make([]accountView, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, toAccountView(a))
	}

	writeJSON(w, http.StatusOK, views)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// TopUpHandler handles POST /wallet/topup
func (h *HandlerProvider) TopUpHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	balance, err := h.ledger.TopUp(r.Context(), amount)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

// DeductHandler handles POST /wallet/deduct
func (h *HandlerProvider) DeductHandler(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	balance, err := h.ledger.Deduct(r.Context(), amount)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

// TransferHandler handles POST /wallet/transfer
func (h *HandlerProvider) TransferHandler(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if !decodeBody(w, r, &req) {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid amount")
		return
	}

	balance, err := h.ledger.Transfer(r.Context(), req.Recipient, amount)
	if err != nil {
		h.writeLedgerError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"balance": balance.StringFixed(2)})
}

// --- Cart handlers ---

type addUnitRequest struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
}

// AddUnitHandler handles POST /cart/items
func (h *HandlerProvider) AddUnitHandler(w http.ResponseWriter, r *http.Request) {
	var req addUnitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id required")
		return
	}

	price, err := parseAmount(req.UnitPrice)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid unit_price")
		return
	}

	units, err := h.cart.AddUnit(r.Context(), req.ProductID, req.Name, price)
	if err != nil {
		slog.Error("add unit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"units": units})
}

// RemoveAllUnitsHandler handles DELETE /cart/items/{productID}
func (h *HandlerProvider) RemoveAllUnitsHandler(w http.ResponseWriter, r *http.Request) {
	err := h.cart.RemoveAllUnits(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		slog.Error("remove units failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

// SetQuantityHandler handles PUT /cart/items/{productID}/quantity
func (h *HandlerProvider) SetQuantityHandler(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := h.cart.SetQuantity(r.Context(), chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		if errors.Is(err, cart.ErrInvalidQuantity) {
			writeError(w, http.StatusBadRequest, "quantity must be a positive integer")
			return
		}

		slog.Error("set quantity failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// IncrementUnitHandler handles POST /cart/items/{productID}/increment
func (h *HandlerProvider) IncrementUnitHandler(w http.ResponseWriter, r *http.Request) {
	err := h.cart.IncrementUnit(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		slog.Error("increment unit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// DecrementUnitHandler handles POST /cart/items/{productID}/decrement
func (h *HandlerProvider) DecrementUnitHandler(w http.ResponseWriter, r *http.Request) {
	err := h.cart.DecrementUnit(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		slog.Error("decrement unit failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type cartLineView struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int    `json:"quantity"`
	LineTotal string `json:"line_total"`
}

type cartView struct {
	Lines      []cartLineView `json:"lines"`
	GrandTotal string         `json:"grand_total"`
}

// CartHandler handles GET /cart
func (h *HandlerProvider) CartHandler(w http.ResponseWriter, r *http.Request) {
	sum, err := h.cart.Aggregate(r.Context())
	if err != nil {
		slog.Error("aggregate cart failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	view := cartView{
		Lines:      make([]cartLineView, 0, len(sum.Lines)),
		GrandTotal: sum.GrandTotal.StringFixed(2),
	}

	for _, l := range sum.Lines {
		view.Lines = append(view.Lines, cartLineView{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: l.UnitPrice.StringFixed(2),
			Quantity:  l.Quantity,
			LineTotal: l.LineTotal.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, view)
}

// ClearCartHandler handles DELETE /cart
func (h *HandlerProvider) ClearCartHandler(w http.ResponseWriter, r *http.Request) {
	err := h.cart.Clear(r.Context())
	if err != nil {
		slog.Error("clear cart failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")

		return
	}

	w.WriteHeader(http.StatusNoContent)
}
