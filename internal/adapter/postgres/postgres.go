// Package postgres stores sessions: the font set document, its diff records
// and the content-addressed font bytes.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/tern/v2/migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	applicationName = "fontdiff"
	// Own version table so fontdiff can share a database with other services.
	schemaVersionTable = "public.fontdiff_schema_version"
	// "fontdi" in ASCII hex.
	migrationLockID = 0x666f6e746469
	unlockTimeout   = 5 * time.Second
)

var sessionTables = []string{"fontsets", "font_diffs", "font_files"}

// Connect opens a pool and pings it. tracer may be nil.
func Connect(ctx context.Context, databaseURL string, tracer pgx.QueryTracer) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	if _, ok := poolCfg.ConnConfig.RuntimeParams["application_name"]; !ok {
		poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if tracer != nil {
		poolCfg.ConnConfig.Tracer = tracer
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Session store connected",
		"host", poolCfg.ConnConfig.Host,
		"database", poolCfg.ConnConfig.Database,
		"tls", poolCfg.ConnConfig.TLSConfig != nil,
		"max_conns", poolCfg.MaxConns)
	return pool, nil
}

// SchemaStatus describes the session schema after Migrate.
type SchemaStatus struct {
	Version int32
	Latest  int32
	// Applied names the migrations run by this call, in order.
	Applied []string
}

// Migrate brings the session tables up to the embedded schema. Server
// instances starting together serialize on an advisory lock.
func Migrate(ctx context.Context, pool *pgxpool.Pool) (SchemaStatus, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to acquire connection for migration: %w", err)
	}
	defer conn.Release()

	unlock, err := lockMigrations(ctx, conn.Conn())
	if err != nil {
		return SchemaStatus{}, err
	}
	defer unlock()

	migrationFS, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to read migrations: %w", err)
	}
	migrator, err := migrate.NewMigrator(ctx, conn.Conn(), schemaVersionTable)
	if err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to create migrator: %w", err)
	}
	if err := migrator.LoadMigrations(migrationFS); err != nil {
		return SchemaStatus{}, fmt.Errorf("failed to load migrations: %w", err)
	}

	status := SchemaStatus{Latest: int32(len(migrator.Migrations))}
	migrator.OnStart = func(sequence int32, name, direction, _ string) {
		status.Applied = append(status.Applied, name)
		slog.Info("Applying session schema migration", "sequence", sequence, "name", name, "direction", direction)
	}

	if err := migrator.Migrate(ctx); err != nil {
		return status, fmt.Errorf("failed to migrate session schema: %w", err)
	}
	if status.Version, err = migrator.GetCurrentVersion(ctx); err != nil {
		return status, fmt.Errorf("failed to read session schema version: %w", err)
	}

	slog.Info("Session schema ready",
		"version", status.Version,
		"applied", len(status.Applied),
		"tables", sessionTables)
	return status, nil
}

func lockMigrations(ctx context.Context, conn *pgx.Conn) (func(), error) {
	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return nil, fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
		defer cancel()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			slog.Error("Failed to release migration lock", "error", err)
		}
	}, nil
}
