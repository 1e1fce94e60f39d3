// Package memory provides process-local repositories with the same uniqueness
// and ordering guarantees as the postgres ones. It backs local development
// (STORAGE_DRIVER=memory) and service tests.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/rcfms-admin/models"
	"github.com/upb/rcfms-admin/repositories"
)

// Store holds all tables behind one mutex.
type Store struct {
	mu         sync.Mutex
	profiles   map[uuid.UUID]models.Profile
	identities map[uuid.UUID]models.Identity
	audit      []models.AuditLog
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		profiles:   make(map[uuid.UUID]models.Profile),
		identities: make(map[uuid.UUID]models.Identity),
	}
}

// Repositories returns repositories backed by this store
func (s *Store) Repositories() *repositories.Repositories {
	return &repositories.Repositories{
		Profiles:   &ProfileRepository{store: s},
		Identities: &IdentityRepository{store: s},
		AuditLogs:  &AuditRepository{store: s},
	}
}

// TransactionManager returns a transaction manager for this store
func (s *Store) TransactionManager() repositories.TransactionManager {
	return &TransactionManager{store: s}
}

type heldKey struct{}

// lock takes the store mutex unless ctx belongs to a transaction that already holds it.
func (s *Store) lock(ctx context.Context) func() {
	if held, _ := ctx.Value(heldKey{}).(*Store); held == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type snapshot struct {
	profiles   map[uuid.UUID]models.Profile
	identities map[uuid.UUID]models.Identity
	auditLen   int
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		profiles:   make(map[uuid.UUID]models.Profile, len(s.profiles)),
		identities: make(map[uuid.UUID]models.Identity, len(s.identities)),
		auditLen:   len(s.audit),
	}
	for k, v := range s.profiles {
		snap.profiles[k] = v
	}
	for k, v := range s.identities {
		snap.identities[k] = v
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.profiles = snap.profiles
	s.identities = snap.identities
	s.audit = s.audit[:snap.auditLen]
}

// TransactionManager serializes transactions on the store mutex.
type TransactionManager struct {
	store *Store
}

// Begin locks the store and records a snapshot for rollback
func (tm *TransactionManager) Begin(ctx context.Context) (repositories.Transaction, error) {
	if held, _ := ctx.Value(heldKey{}).(*Store); held == tm.store {
		return nil, errors.New("memory: nested transactions are not supported")
	}
	tm.store.mu.Lock()
	return &Transaction{
		store: tm.store,
		snap:  tm.store.snapshot(),
		ctx:   context.WithValue(ctx, heldKey{}, tm.store),
	}, nil
}

// InTransaction executes fn inside a transaction
func (tm *TransactionManager) InTransaction(ctx context.Context, fn func(ctx context.Context, tx repositories.Transaction) error) error {
	tx, err := tm.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx.Context(), tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Transaction is an in-flight memory transaction
type Transaction struct {
	store *Store
	snap  snapshot
	ctx   context.Context
	done  bool
}

// Commit releases the store
func (t *Transaction) Commit() error {
	if t.done {
		return errors.New("memory: transaction already finished")
	}
	t.done = true
	t.store.mu.Unlock()
	return nil
}

// Rollback restores the snapshot and releases the store
func (t *Transaction) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	t.store.restore(t.snap)
	t.store.mu.Unlock()
	return nil
}

// Context returns the transaction context
func (t *Transaction) Context() context.Context {
	return t.ctx
}
