// Package memory is an in-process implementation of the repository interfaces.
//
// Transactions are serialized: WithinTx holds a store-wide lock for the whole
// unit of work, which gives the same outcome as row locks for the engine's
// single-row critical sections. A failed or panicking unit restores the
// snapshot taken when it began.
package memory

import (
	"context"
	"database/sql"
	"maps"
	"slices"
	"sync"
	"time"
	"tle_arena/internal/domain/model"
	"tle_arena/internal/domain/repository"
)

type data struct {
	users        map[string]model.User
	players      map[string]model.Player
	problems     map[string]model.Problem
	contests     map[string]model.Contest
	participants map[string]model.ContestParticipant
	submissions  map[string]model.Submission
	ledger       []model.XPLedgerEntry
}

func newData() *data {
	return &data{
		users:        map[string]model.User{},
		players:      map[string]model.Player{},
		problems:     map[string]model.Problem{},
		contests:     map[string]model.Contest{},
		participants: map[string]model.ContestParticipant{},
		submissions:  map[string]model.Submission{},
	}
}

// clone copies the maps. Stored values are never mutated in place, so the
// values themselves can be shared with the snapshot.
func (d *data) clone() *data {
	return &data{
		users:        maps.Clone(d.users),
		players:      maps.Clone(d.players),
		problems:     maps.Clone(d.problems),
		contests:     maps.Clone(d.contests),
		participants: maps.Clone(d.participants),
		submissions:  maps.Clone(d.submissions),
		ledger:       slices.Clone(d.ledger),
	}
}

type Store struct {
	txMu sync.Mutex
	mu   sync.RWMutex
	d    *data
	now  func() time.Time
}

func NewStore() *Store {
	return &Store{d: newData(), now: func() time.Time { return time.Now().UTC() }}
}

var _ repository.Transactor = (*Store)(nil)

// WithinTx runs fn with a nil *sql.Tx; the memory repositories ignore it.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.RLock()
	snapshot := s.d.clone()
	s.mu.RUnlock()

	committed := false
	defer func() {
		if !committed {
			s.mu.Lock()
			s.d = snapshot
			s.mu.Unlock()
		}
	}()

	if err := fn(ctx, nil); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Store) read(fn func(d *data)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.d)
}

func (s *Store) write(fn func(d *data) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s.d)
}

func (s *Store) Users() repository.UserRepository               { return userRepo{s} }
func (s *Store) Players() repository.PlayerRepository           { return playerRepo{s} }
func (s *Store) Problems() repository.ProblemRepository         { return problemRepo{s} }
func (s *Store) Contests() repository.ContestRepository         { return contestRepo{s} }
func (s *Store) Participants() repository.ParticipantRepository { return participantRepo{s} }
func (s *Store) Submissions() repository.SubmissionRepository   { return submissionRepo{s} }
func (s *Store) Ledger() repository.XPLedgerRepository          { return ledgerRepo{s} }

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return slices.Clone(items[offset:end])
}
