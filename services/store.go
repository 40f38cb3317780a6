package services

import (
	"context"
	"fmt"

	"hospital-billing/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is the unit-of-work boundary around the database handle. It is
// opened once in main and injected into every service.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Transaction runs fn in a single commit-or-rollback unit of work.
// Nothing fn writes is visible outside until it returns nil.
func (s *Store) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// Reader returns a session for read-only queries outside a transaction.
func (s *Store) Reader(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (SQLite)
// drop the clause; their single connection already serializes writers.
func forUpdate(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockByID loads dest by primary key and holds its row lock until commit.
func lockByID(tx *gorm.DB, dest any, id string) error {
	return forUpdate(tx).Where("id = ?", id).First(dest).Error
}

// nextNumber increments the named counter inside tx and formats it as PREFIX-000001.
// The counter row stays locked until tx ends, so concurrent creators queue on it.
func nextNumber(tx *gorm.DB, name, prefix string) (string, error) {
	bump := func() (int64, error) {
		res := tx.Model(&models.Sequence{}).
			Where("name = ?", name).
			UpdateColumn("value", gorm.Expr("value + 1"))
		return res.RowsAffected, res.Error
	}

	n, err := bump()
	if err != nil {
		return "", fmt.Errorf("sequence %s: %w", name, err)
	}
	if n == 0 {
		seed := models.Sequence{Name: name, Value: 0}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seed).Error; err != nil {
			return "", fmt.Errorf("sequence %s: %w", name, err)
		}
		if _, err := bump(); err != nil {
			return "", fmt.Errorf("sequence %s: %w", name, err)
		}
	}

	var seq models.Sequence
	if err := tx.Where("name = ?", name).First(&seq).Error; err != nil {
		return "", fmt.Errorf("sequence %s: %w", name, err)
	}
	return fmt.Sprintf("%s-%06d", prefix, seq.Value), nil
}
