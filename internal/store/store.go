package store

import (
	"context"
	"errors"
)

// ErrNoDocument is returned by Load when the key has never been written
// or was deleted. Callers treat an absent document as empty state, never
// as a fatal condition.
var ErrNoDocument = errors.New("no document")

// Well-known document keys. Each key holds one independent JSON document;
// there is no cross-document consistency beyond last-writer-wins.
const (
	KeyLedger  = "ledger"
	KeySession = "session"
	KeyCart    = "cart"
)

// Store is a key-value document store. Every mutation in the services
// follows read-entire-document -> mutate -> write-entire-document, so a
// backend only needs whole-value Load/Save/Delete.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, doc []byte) error
	Delete(ctx context.Context, key string) error
}
