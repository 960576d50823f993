package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"
)

var (
	ErrPairingInvalid = errors.New("pairing code invalid")
	ErrPairingExpired = errors.New("pairing code expired")
)

type pairingEntry struct {
	createdAt time.Time
	requestID string
}

// PairingStore tracks pending six digit pairing codes. A code is printed in
// the hub log and typed into the client, which then receives a token pair.
type PairingStore struct {
	mu      sync.Mutex
	entries map[string]pairingEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewPairingStore(ttl time.Duration) *PairingStore {
	return &PairingStore{
		entries: make(map[string]pairingEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// StartCleanup removes expired codes periodically until the context is canceled.
func (store *PairingStore) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				store.CleanupExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// CleanupExpired removes expired pairing codes and returns how many.
func (store *PairingStore) CleanupExpired() int {
	store.mu.Lock()
	defer store.mu.Unlock()

	removed := 0
	for code, entry := range store.entries {
		if store.expired(entry) {
			delete(store.entries, code)
			removed++
		}
	}
	return removed
}

// Create generates and stores a new pairing code.
func (store *PairingStore) Create(requestID string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()

	for attempts := 0; attempts < 10; attempts++ {
		code, err := randomPairingCode()
		if err != nil {
			return "", err
		}
		if _, exists := store.entries[code]; exists {
			continue
		}
		store.entries[code] = pairingEntry{createdAt: store.now(), requestID: requestID}
		return code, nil
	}
	return "", fmt.Errorf("unable to generate unique pairing code")
}

// Redeem consumes a code. Expired codes are consumed as well.
func (store *PairingStore) Redeem(code string) error {
	store.mu.Lock()
	defer store.mu.Unlock()

	entry, ok := store.entries[code]
	if !ok {
		return ErrPairingInvalid
	}
	delete(store.entries, code)
	if store.expired(entry) {
		return ErrPairingExpired
	}
	return nil
}

// Pending returns the number of outstanding codes.
func (store *PairingStore) Pending() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.entries)
}

func (store *PairingStore) expired(entry pairingEntry) bool {
	return store.now().Sub(entry.createdAt) > store.ttl
}

func randomPairingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", 100000+n.Int64()), nil
}
