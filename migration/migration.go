package migration

import (
	"fmt"
	"sort"
	"time"

	"gorm.io/gorm"
)

// Func is one schema migration.
type Func func(db *gorm.DB) error

var registry = make(map[string]Func)

// Register adds a named migration. Names are date-prefixed so execution
// order follows registration date; duplicate names fail.
func Register(name string, fn Func) error {
	if _, exists := registry[name]; exists {
		return fmt.Errorf("migration %q already registered", name)
	}
	registry[name] = fn
	return nil
}

// appliedMigration records which migrations already ran.
type appliedMigration struct {
	Name      string `gorm:"primaryKey;size:100"`
	AppliedAt time.Time
}

// RunAll executes every registered migration that has not been applied yet,
// in name order, each in its own transaction.
func RunAll(db *gorm.DB) error {
	if err := db.AutoMigrate(&appliedMigration{}); err != nil {
		return fmt.Errorf("migration bookkeeping: %w", err)
	}

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		var done appliedMigration
		err := db.Where("name = ?", name).First(&done).Error
		if err == nil {
			continue
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		if err := db.Transaction(func(tx *gorm.DB) error {
			if err := registry[name](tx); err != nil {
				return err
			}
			return tx.Create(&appliedMigration{Name: name, AppliedAt: time.Now().UTC()}).Error
		}); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}
