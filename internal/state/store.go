package state

import (
	"context"
	"fmt"

	"github.com/guimove/rmqscaler/internal/model"
)

// Backend is a flat string key/value record. Patch merges keys into the
// record and leaves keys it does not mention untouched.
type Backend interface {
	Read(ctx context.Context) (map[string]string, error)
	Patch(ctx context.Context, kv map[string]string) error
	Name() string
}

// Store persists the stability record and the last scale event.
type Store struct {
	backend Backend
}

func NewStore(b Backend) *Store {
	return &Store{backend: b}
}

func (s *Store) Backend() string {
	return s.backend.Name()
}

// Load reads the persisted state. A missing record yields a zero state.
func (s *Store) Load(ctx context.Context) (model.PersistedState, error) {
	data, err := s.backend.Read(ctx)
	if err != nil {
		return model.PersistedState{}, fmt.Errorf("reading state from %s: %w", s.backend.Name(), err)
	}
	return Decode(data), nil
}

func (s *Store) SaveStability(ctx context.Context, rec model.StabilityRecord) error {
	if err := s.backend.Patch(ctx, EncodeStability(rec)); err != nil {
		return fmt.Errorf("saving stability record to %s: %w", s.backend.Name(), err)
	}
	return nil
}

func (s *Store) SaveScaleEvent(ctx context.Context, ev model.ScaleEvent) error {
	if err := s.backend.Patch(ctx, EncodeScaleEvent(ev)); err != nil {
		return fmt.Errorf("saving scale event to %s: %w", s.backend.Name(), err)
	}
	return nil
}
