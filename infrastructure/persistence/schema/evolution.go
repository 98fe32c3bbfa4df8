package schema

import (
	"context"
	"fmt"
	"time"
)

// Definer applies schema-definition statements to a store
type Definer interface {
	CreateType(ctx context.Context, ut *UserType) error
	CreateTable(ctx context.Context, t *Table) error
}

// SchemaVersion records one applied step
type SchemaVersion struct {
	Version     int       `json:"version"`
	Description string    `json:"description"`
	AppliedAt   time.Time `json:"applied_at"`
}

// Migration is one forward step of schema application
type Migration struct {
	FromVersion int
	ToVersion   int
	Description string
	Up          MigrationFunc
}

// MigrationFunc performs a step
type MigrationFunc func(ctx context.Context) error

// SchemaEvolution applies the registry to a store as ordered, versioned steps.
// Every step is idempotent, so running it against an already-bootstrapped
// store is harmless.
type SchemaEvolution struct {
	currentVersion int
	migrations     []Migration
	history        []SchemaVersion
}

// NewSchemaEvolution creates an empty evolution at version 0
func NewSchemaEvolution() *SchemaEvolution {
	return &SchemaEvolution{}
}

// NewBootstrap returns the evolution that creates every user type (v1) and
// then every table (v2) of the registry.
func NewBootstrap(reg *Registry, definer Definer) *SchemaEvolution {
	s := NewSchemaEvolution()
	_ = s.RegisterMigration(Migration{
		FromVersion: 0,
		ToVersion:   1,
		Description: "create user types",
		Up: func(ctx context.Context) error {
			for _, ut := range reg.UserTypes() {
				if err := definer.CreateType(ctx, ut); err != nil {
					return fmt.Errorf("failed to create type %s: %w", ut.Name, err)
				}
			}
			return nil
		},
	})
	_ = s.RegisterMigration(Migration{
		FromVersion: 1,
		ToVersion:   2,
		Description: "create tables",
		Up: func(ctx context.Context) error {
			for _, t := range reg.Tables() {
				if err := definer.CreateTable(ctx, t); err != nil {
					return fmt.Errorf("failed to create table %s: %w", t.Name, err)
				}
			}
			return nil
		},
	})
	return s
}

// RegisterMigration registers a new step
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.FromVersion >= migration.ToVersion {
		return fmt.Errorf("invalid migration: from_version must be less than to_version")
	}
	if migration.Up == nil {
		return fmt.Errorf("migration %d->%d has no Up step", migration.FromVersion, migration.ToVersion)
	}

	for _, existing := range s.migrations {
		if existing.FromVersion == migration.FromVersion &&
			existing.ToVersion == migration.ToVersion {
			return fmt.Errorf("migration from %d to %d already exists",
				migration.FromVersion, migration.ToVersion)
		}
	}

	s.migrations = append(s.migrations, migration)
	return nil
}

// Migrate applies steps until targetVersion is reached
func (s *SchemaEvolution) Migrate(ctx context.Context, targetVersion int) error {
	if targetVersion < s.currentVersion {
		return fmt.Errorf("cannot move schema back from version %d to %d", s.currentVersion, targetVersion)
	}

	for s.currentVersion < targetVersion {
		migration := s.findMigration(s.currentVersion)
		if migration == nil {
			return fmt.Errorf("no migration found from version %d", s.currentVersion)
		}

		if err := migration.Up(ctx); err != nil {
			return fmt.Errorf("migration %d->%d failed: %w",
				migration.FromVersion, migration.ToVersion, err)
		}

		s.history = append(s.history, SchemaVersion{
			Version:     migration.ToVersion,
			Description: migration.Description,
			AppliedAt:   time.Now(),
		})
		s.currentVersion = migration.ToVersion
	}

	return nil
}

// Latest returns the highest reachable version
func (s *SchemaEvolution) Latest() int {
	latest := s.currentVersion
	for _, m := range s.migrations {
		if m.ToVersion > latest {
			latest = m.ToVersion
		}
	}
	return latest
}

func (s *SchemaEvolution) findMigration(from int) *Migration {
	for i := range s.migrations {
		if s.migrations[i].FromVersion == from {
			return &s.migrations[i]
		}
	}
	return nil
}

// CurrentVersion returns the current schema version
func (s *SchemaEvolution) CurrentVersion() int {
	return s.currentVersion
}

// History returns the applied steps
func (s *SchemaEvolution) History() []SchemaVersion {
	return s.history
}
