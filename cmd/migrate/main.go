package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/racp/ocserv-agent/pkg/config"
	"github.com/racp/ocserv-agent/pkg/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

type options struct {
	direction string
	steps     int
	dir       string
	dsn       string
}

func main() {
	var (
		opts     options
		envFiles []string
	)
	flags := pflag.NewFlagSet("ocserv-agent-migrate", pflag.ExitOnError)
	flags.StringVar(&opts.direction, "direction", directionUp, "migration direction: up or down")
	flags.IntVar(&opts.steps, "steps", 0, "number of migrations to apply (0 = all possible)")
	flags.StringVar(&opts.dir, "dir", "deploy/sql/migrations", "directory holding NNN_name.up.sql / .down.sql pairs")
	flags.StringVar(&opts.dsn, "dsn", "", "postgres connection string (default: $POSTGRES_URL)")
	flags.StringSliceVar(&envFiles, "env-file", []string{".env"}, "KEY=VALUE files loaded before reading the environment")
	_ = flags.Parse(os.Args[1:])
	if flags.NArg() > 0 {
		opts.direction = flags.Arg(0)
	}

	logger, err := loadEnv(envFiles)
	if err != nil {
		logger.Fatal().Err(err).Msg("load env files")
	}
	if opts.dsn == "" {
		opts.dsn = os.Getenv("POSTGRES_URL")
	}
	if err := run(context.Background(), logger, opts); err != nil {
		logger.Fatal().Err(err).Msg("migrate failed")
	}
}

// loadEnv applies the env files before the logger reads APP_ENV and
// LOG_LEVEL, so both may come from .env.
func loadEnv(envFiles []string) (zerolog.Logger, error) {
	err := config.LoadDotEnv(envFiles...)
	return logging.New("racp-ocserv-agent", "migrate", os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL")), err
}

func run(ctx context.Context, logger zerolog.Logger, opts options) error {
	if opts.direction != directionUp && opts.direction != directionDown {
		return fmt.Errorf("invalid direction %q (expected up or down)", opts.direction)
	}
	if opts.dsn == "" {
		return fmt.Errorf("POSTGRES_URL is required")
	}

	migrations, err := loadMigrationFiles(opts.dir)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}
	if len(migrations) == 0 {
		logger.Info().Str("dir", opts.dir).Msg("no migration files found")
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := pgx.Connect(connectCtx, opts.dsn)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer conn.Close(ctx)

	if err := ensureSchemaMigrationsTable(ctx, conn); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}
	applied, err := loadAppliedMigrations(ctx, conn)
	if err != nil {
		return fmt.Errorf("load applied migrations: %w", err)
	}

	selected := selectMigrations(opts.direction, opts.steps, migrations, applied)
	for _, m := range selected {
		if err := runMigration(ctx, conn, opts.direction, m); err != nil {
			return fmt.Errorf("apply migration %s %s: %w", m.Version, opts.direction, err)
		}
		logger.Info().Str("version", m.Version).Str("direction", opts.direction).Msg("applied migration")
	}
	logger.Info().Int("count", len(selected)).Str("direction", opts.direction).Msg("migrations complete")
	return nil
}

type migration struct {
	Version  string
	UpPath   string
	DownPath string
}

func ensureSchemaMigrationsTable(ctx context.Context, conn *pgx.Conn) error {
	_, err := conn.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	return err
}

// loadMigrationFiles pairs NNN_name.up.sql with NNN_name.down.sql and sorts
// them by version. An unpaired file is an error.
func loadMigrationFiles(root string) ([]migration, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	byVersion := map[string]*migration{}
	get := func(version string) *migration {
		m := byVersion[version]
		if m == nil {
			m = &migration{Version: version}
			byVersion[version] = m
		}
		return m
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, ".up.sql"):
			get(strings.TrimSuffix(name, ".up.sql")).UpPath = filepath.Join(root, name)
		case strings.HasSuffix(name, ".down.sql"):
			get(strings.TrimSuffix(name, ".down.sql")).DownPath = filepath.Join(root, name)
		}
	}

	result := make([]migration, 0, len(byVersion))
	for _, m := range byVersion {
		if m.UpPath == "" || m.DownPath == "" {
			return nil, fmt.Errorf("migration %q missing up or down file", m.Version)
		}
		result = append(result, *m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Version < result[j].Version })
	return result, nil
}

func loadAppliedMigrations(ctx context.Context, conn *pgx.Conn) (map[string]bool, error) {
	rows, err := conn.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	versions, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}
	return applied, nil
}

// selectMigrations returns pending migrations oldest first for up, and
// applied ones newest first for down, capped at steps when positive.
func selectMigrations(direction string, steps int, all []migration, applied map[string]bool) []migration {
	selected := make([]migration, 0)
	switch direction {
	case directionUp:
		for _, m := range all {
			if !applied[m.Version] {
				selected = append(selected, m)
			}
		}
	case directionDown:
		for i := len(all) - 1; i >= 0; i-- {
			if applied[all[i].Version] {
				selected = append(selected, all[i])
			}
		}
	}
	if steps > 0 && steps < len(selected) {
		selected = selected[:steps]
	}
	return selected
}

func runMigration(ctx context.Context, conn *pgx.Conn, direction string, m migration) error {
	path := m.UpPath
	bookkeeping := `INSERT INTO schema_migrations (version) VALUES ($1)`
	if direction == directionDown {
		path = m.DownPath
		bookkeeping = `DELETE FROM schema_migrations WHERE version = $1`
	}

	sqlBytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return pgx.BeginFunc(ctx, conn, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, string(sqlBytes)); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, bookkeeping, m.Version)
		return err
	})
}
