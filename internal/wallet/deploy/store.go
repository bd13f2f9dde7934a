package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/pkg/errors"
)

var ErrRecordNotFound = errors.New("deployment record not found")

type RecordStatus string

const (
	RecordPending  RecordStatus = "pending"
	RecordFailed   RecordStatus = "failed"
	RecordDeployed RecordStatus = "deployed"
)

// Record tracks the last deploy-account submission for one address.
type Record struct {
	Address   *felt.Felt
	ClassHash *felt.Felt
	Salt      *felt.Felt
	TxHash    *felt.Felt // nil until a submission was attempted
	Status    RecordStatus
	UpdatedAt time.Time
}

// Store persists deployment records keyed by address.
type Store interface {
	// Get returns ErrRecordNotFound when nothing was recorded for address.
	Get(ctx context.Context, address *felt.Felt) (*Record, error)
	// Save inserts or replaces the record of rec.Address.
	Save(ctx context.Context, rec Record) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	records map[felt.Felt]Record
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[felt.Felt]Record)}
}

func (s *MemoryStore) Get(_ context.Context, address *felt.Felt) (*Record, error) {
	if address == nil {
		return nil, ErrRecordNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[*address]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Save(_ context.Context, rec Record) error {
	if rec.Address == nil {
		return errors.New("record address is required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[*rec.Address] = rec
	return nil
}
