// Package store implements the voting and answer lifecycle stores on
// PostgreSQL through gorm.
package store

import (
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/emilythestrangee/stackit/backend/internal/apperr"
	"github.com/emilythestrangee/stackit/backend/internal/lifecycle"
	"github.com/emilythestrangee/stackit/backend/internal/voting"
)

const uniqueViolation = "23505"

type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Votes returns the store as seen by the voting service.
func (s *Store) Votes() voting.Store { return voteStore{db: s.db} }

// Lifecycle returns the store as seen by the answer lifecycle service.
func (s *Store) Lifecycle() lifecycle.Store { return lifecycleStore{db: s.db} }

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error, what string, id uint) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %s %d", apperr.ErrNotFound, what, id)
	}
	return fmt.Errorf("load %s %d: %w", what, id, err)
}

func toUints(a pq.Int64Array) []uint {
	out := make([]uint, len(a))
	for i, v := range a {
		out[i] = uint(v)
	}
	return out
}

func toInt64s(ids []uint) pq.Int64Array {
	out := make(pq.Int64Array, len(ids))
	for i, v := range ids {
		out[i] = int64(v)
	}
	slices.Sort(out)
	return out
}

func tableFor(tt voting.TargetType) (string, error) {
	switch tt {
	case voting.TargetQuestion:
		return "questions", nil
	case voting.TargetAnswer:
		return "answers", nil
	}
	return "", voting.ErrInvalidTargetType
}
