package testhelpers

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"
)

// FakeTx stands in for a pgx.Tx in unit tests where repositories are mocked.
// Only Commit and Rollback are implemented; any other call panics.
type FakeTx struct {
	pgx.Tx
	CommitErr  error
	Committed  bool
	RolledBack bool
}

func (t *FakeTx) Commit(context.Context) error {
	if t.CommitErr != nil {
		return t.CommitErr
	}
	t.Committed = true
	return nil
}

func (t *FakeTx) Rollback(context.Context) error {
	if !t.Committed {
		t.RolledBack = true
	}
	return nil
}

// FakeTxManager hands out FakeTx values and records them for assertions.
type FakeTxManager struct {
	mu        sync.Mutex
	BeginErr  error
	CommitErr error
	Txs       []*FakeTx
}

func (m *FakeTxManager) BeginTx(context.Context) (pgx.Tx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BeginErr != nil {
		return nil, m.BeginErr
	}
	tx := &FakeTx{CommitErr: m.CommitErr}
	m.Txs = append(m.Txs, tx)
	return tx, nil
}

// Last returns the most recently started transaction, or nil.
func (m *FakeTxManager) Last() *FakeTx {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Txs) == 0 {
		return nil
	}
	return m.Txs[len(m.Txs)-1]
}
