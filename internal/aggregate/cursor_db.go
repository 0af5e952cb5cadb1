package aggregate

import (
	"context"
	"fmt"
	"math"

	"swapCore/internal/storage/postgres"
)

// DBCursorStore keeps the cursor in the exchange_state table under Name, one
// row per aggregation window size.
type DBCursorStore struct {
	Store *postgres.Store
	Name  string
}

func (s *DBCursorStore) Load(ctx context.Context) (uint64, bool, error) {
	if s == nil || s.Store == nil {
		return 0, false, nil
	}
	seq, ok, err := s.Store.LoadState(ctx, s.Name)
	if err != nil {
		return 0, false, fmt.Errorf("load aggregation cursor %q: %w", s.Name, err)
	}
	return seq, ok, nil
}

func (s *DBCursorStore) Save(ctx context.Context, seq uint64) error {
	if s == nil || s.Store == nil {
		return nil
	}
	// last_processed_seq is a BIGINT.
	if seq > math.MaxInt64 {
		return fmt.Errorf("aggregation cursor %d does not fit the state table", seq)
	}
	if err := s.Store.SaveState(ctx, s.Name, seq); err != nil {
		return fmt.Errorf("save aggregation cursor %q at seq %d: %w", s.Name, seq, err)
	}
	return nil
}
