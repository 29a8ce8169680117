package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/tableside/internal/config"
	"github.com/Additional-Code/tableside/internal/database"
)

//go:embed sql
var migrations embed.FS

// Module provides the Migrator to Fx.
var Module = fx.Provide(New)

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Migrator applies the order journal schema with goose.
type Migrator struct {
	db      *sql.DB
	dialect string
	dir     string
	logger  *zap.Logger
}

// New constructs a goose-backed migrator over the writer pool.
func New(cfg config.Config, conns *database.Connections, logger *zap.Logger) (*Migrator, error) {
	return NewForDB(cfg.Database.Driver, conns.Writer.DB, logger)
}

// NewForDB constructs a migrator for an already opened database.
func NewForDB(driver string, db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	dialect, err := gooseDialect(driver)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Migrator{
		db:      db,
		dialect: dialect,
		dir:     path.Join("sql", driver),
		logger:  logger,
	}, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up(ctx context.Context) error {
	err := m.with(func() error { return goose.UpContext(ctx, m.db, m.dir) })
	if err != nil {
		if isNoMigrationErr(err) {
			m.logger.Info("no migrations to apply")
			return nil
		}
		return err
	}
	m.logger.Info("migrations applied")
	return nil
}

// Down rolls back migrations. Steps <=0 defaults to 1; all=true rolls everything back.
func (m *Migrator) Down(ctx context.Context, steps int, all bool) error {
	if all {
		err := m.with(func() error { return goose.DownToContext(ctx, m.db, m.dir, 0) })
		if err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
		m.logger.Info("migrations rolled back", zap.String("mode", "all"))
		return nil
	}

	if steps <= 0 {
		steps = 1
	}
	for i := 0; i < steps; i++ {
		err := m.with(func() error { return goose.DownContext(ctx, m.db, m.dir) })
		if err != nil {
			if isNoMigrationErr(err) {
				m.logger.Info("no migrations to rollback")
				return nil
			}
			return err
		}
	}
	m.logger.Info("migrations rolled back", zap.Int("steps", steps))
	return nil
}

// Version reports the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.with(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		version = v
		return err
	})
	return version, err
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(zapGooseLogger{m.logger.Sugar()})
	if err := goose.SetDialect(m.dialect); err != nil {
		return err
	}
	return fn()
}

func gooseDialect(driver string) (string, error) {
	switch driver {
	case "postgres":
		return "postgres", nil
	case "mysql":
		return "mysql", nil
	case "sqlite":
		return "sqlite3", nil
	default:
		return "", fmt.Errorf("unsupported goose dialect for driver %s", driver)
	}
}

func isNoMigrationErr(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, goose.ErrNoNextVersion) || errors.Is(err, goose.ErrNoCurrentVersion) || errors.Is(err, goose.ErrNoMigrationFiles) {
		return true
	}
	return strings.Contains(err.Error(), "no migrations")
}

type zapGooseLogger struct {
	s *zap.SugaredLogger
}

func (l zapGooseLogger) Fatalf(format string, v ...interface{}) { l.s.Fatalf(format, v...) }

func (l zapGooseLogger) Printf(format string, v ...interface{}) {
	l.s.Infof(strings.TrimSuffix(format, "\n"), v...)
}
