// Package ledger owns account lifecycle, tier derivation, authentication
// and every balance-mutating operation. All state lives in two documents
// of the injected store: the ledger (all accounts) and the session (the
// id of the current account). Mutations are read-whole, mutate, write-
// whole; a missing or corrupted ledger document is reseeded, never fatal.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ecogrove/market/internal/store"
)

var (
	ErrDuplicateUsername  = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNotLoggedIn        = errors.New("not logged in")
	ErrAccountNotFound    = errors.New("account not found")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrRecipientNotFound  = errors.New("recipient not found")
	ErrSelfTransfer       = errors.New("cannot transfer to yourself")
	ErrInvalidAmount      = errors.New("invalid amount")
)

type document struct {
	Users []Account `json:"users"`
}

type Service struct {
	mu       sync.Mutex
	store    store.Store
	rng      *rand.Rand
	onChange []func()
}

// New builds a Service over st. rng feeds seed-data generation; pass a
// deterministic source in tests, or nil for a randomly seeded one.
func New(st store.Store, rng *rand.Rand) *Service {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	return &Service{store: st, rng: rng}
}

// OnChange registers fn to run after every persisted balance mutation.
func (s *Service) OnChange(fn func()) {
	if fn == nil {
		return
	}

	s.onChange = append(s.onChange, fn)
}

func (s *Service) notify() {
	for _, fn := range s.onChange {
		fn()
	}
}

// Initialize seeds the ledger when no usable ledger document exists.
// Calling it against an existing ledger is a no-op.
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.store.Load(ctx, store.KeyLedger)
	if err == nil {
		var doc document
		if json.Unmarshal(raw, &doc) == nil {
			return nil
		}
	} else if !errors.Is(err, store.ErrNoDocument) {
		return fmt.Errorf("load ledger: %w", err)
	}

	_, err = s.seedLocked(ctx)
	if err != nil {
		return fmt.Errorf("seed ledger: %w", err)
	}

	return nil
}

// CreateAccount appends a fresh zero-balance user account. Usernames are
// unique by case-sensitive comparison.
func (s *Service) CreateAccount(ctx context.Context, username, credential string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return Account{}, err
	}

	for _, u := range doc.Users {
		if u.Username == username {
			return Account{}, ErrDuplicateUsername
		}
	}

	acc := Account{
		ID:         uuid.NewString(),
		Username:   username,
		Credential: credential,
		Balance:    decimal.Zero,
		Role:       RoleUser,
	}

	doc.Users = append(doc.Users, acc)

	err = s.saveLocked(ctx, doc)
	if err != nil {
		return Account{}, err
	}

	return acc, nil
}

// Authenticate checks both fields by exact match and, on success,
// establishes a session referencing the account.
func (s *Service) Authenticate(ctx context.Context, username, credential string) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return Account{}, err
	}

	for _, u := range doc.Users {
		if u.Username == username && credentialMatches(u, credential) {
			err = s.saveSessionLocked(ctx, u)
			if err != nil {
				return Account{}, err
			}

			return u, nil
		}
	}

	return Account{}, ErrInvalidCredentials
}

// CurrentAccount re-resolves the session's account id against the ledger
// on every call. Only the id is trusted from the stored session; if it no
// longer resolves the session is torn down and ErrNotLoggedIn returned.
func (s *Service) CurrentAccount(ctx context.Context) (Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentLocked(ctx)
}

// Logout destroys the session. Safe to call with no active session.
func (s *Service) Logout(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.store.Delete(ctx, store.KeySession)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// TopUp adds amount to the current account's balance and returns the new
// balance.
func (s *Service) TopUp(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, idx, err := s.currentIndexLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	doc.Users[idx].Balance = doc.Users[idx].Balance.Add(amount)

	err = s.saveLocked(ctx, doc)
	if err != nil {
		return decimal.Zero, err
	}

	s.notify()

	return doc.Users[idx].Balance, nil
}

// Deduct subtracts amount from the current account's balance. The check
// and the mutation happen against the same loaded document; on
// ErrInsufficientFunds nothing is written.
func (s *Service) Deduct(ctx context.Context, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, idx, err := s.currentIndexLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	if doc.Users[idx].Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	doc.Users[idx].Balance = doc.Users[idx].Balance.Sub(amount)

	err = s.saveLocked(ctx, doc)
	if err != nil {
		return decimal.Zero, err
	}

	s.notify()

	return doc.Users[idx].Balance, nil
}

// Transfer debits the current account and credits recipientUsername in a
// single persisted write, leaving the ledger's total unchanged. Checks
// run in a fixed order: sender, recipient, self-transfer, funds.
func (s *Service) Transfer(ctx context.Context, recipientUsername string, amount decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, senderIdx, err := s.currentIndexLocked(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	recipientIdx := -1

	for i := range doc.Users {
		if doc.Users[i].Username == recipientUsername {
			recipientIdx = i
			break
		}
	}

	if recipientIdx == -1 {
		return decimal.Zero, ErrRecipientNotFound
	}

	if doc.Users[senderIdx].Username == doc.Users[recipientIdx].Username {
		return decimal.Zero, ErrSelfTransfer
	}

	if doc.Users[senderIdx].Balance.LessThan(amount) {
		return decimal.Zero, ErrInsufficientFunds
	}

	doc.Users[senderIdx].Balance = doc.Users[senderIdx].Balance.Sub(amount)
	doc.Users[recipientIdx].Balance = doc.Users[recipientIdx].Balance.Add(amount)

	err = s.saveLocked(ctx, doc)
	if err != nil {
		return decimal.Zero, err
	}

	s.notify()

	return doc.Users[senderIdx].Balance, nil
}

// Accounts lists every account in ledger order.
func (s *Service) Accounts(ctx context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]Account, len(doc.Users))
	copy(out, doc.Users)

	return out, nil
}

// --- document plumbing, all callers hold s.mu ---

func (s *Service) loadLocked(ctx context.Context) (*document, error) {
	raw, err := s.store.Load(ctx, store.KeyLedger)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return s.seedLocked(ctx)
		}

		return nil, fmt.Errorf("load ledger: %w", err)
	}

	var doc document

	err = json.Unmarshal(raw, &doc)
	if err != nil {
		// Corrupted document counts as absent and gets reseeded.
		return s.seedLocked(ctx)
	}

	return &doc, nil
}

func (s *Service) saveLocked(ctx context.Context, doc *document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	err = s.store.Save(ctx, store.KeyLedger, raw)
	if err != nil {
		return fmt.Errorf("save ledger: %w", err)
	}

	return nil
}

func (s *Service) saveSessionLocked(ctx context.Context, acc Account) error {
	raw, err := json.Marshal(acc)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	err = s.store.Save(ctx, store.KeySession, raw)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}

	return nil
}

// sessionIDLocked reads the session document and extracts the account id,
// the only field trusted at rest.
func (s *Service) sessionIDLocked(ctx context.Context) (string, error) {
	raw, err := s.store.Load(ctx, store.KeySession)
	if err != nil {
		if errors.Is(err, store.ErrNoDocument) {
			return "", ErrNotLoggedIn
		}

		return "", fmt.Errorf("load session: %w", err)
	}

	var ref struct {
		ID string `json:"id"`
	}

	err = json.Unmarshal(raw, &ref)
	if err != nil || ref.ID == "" {
		_ = s.store.Delete(ctx, store.KeySession)
		return "", ErrNotLoggedIn
	}

	return ref.ID, nil
}

func (s *Service) currentLocked(ctx context.Context) (Account, error) {
	id, err := s.sessionIDLocked(ctx)
	if err != nil {
		return Account{}, err
	}

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return Account{}, err
	}

	for _, u := range doc.Users {
		if u.ID == id {
			return u, nil
		}
	}

	// Referenced account is gone; self-heal by dropping the session.
	err = s.store.Delete(ctx, store.KeySession)
	if err != nil {
		return Account{}, fmt.Errorf("delete stale session: %w", err)
	}

	return Account{}, ErrNotLoggedIn
}

// currentIndexLocked resolves the session to an index into doc.Users so
// balance mutations edit the document that will be written back.
func (s *Service) currentIndexLocked(ctx context.Context) (*document, int, error) {
	id, err := s.sessionIDLocked(ctx)
	if err != nil {
		return nil, 0, err
	}

	doc, err := s.loadLocked(ctx)
	if err != nil {
		return nil, 0, err
	}

	for i := range doc.Users {
		if doc.Users[i].ID == id {
			return doc, i, nil
		}
	}

	return nil, 0, ErrAccountNotFound
}
