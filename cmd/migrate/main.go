package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"gold-rush/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
)

const (
	cmdUp      = "up"
	cmdDown    = "down"
	cmdVersion = "version"
	cmdStatus  = "status"

	usage = "usage: go run ./cmd/migrate [up|down [steps]|version|status]"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = db.NewPool
	exitFunc    = os.Exit
)

func main() {
	loadEnvFunc()

	if err := run(context.Background(), os.Args[1:]); err != nil {
		log.Printf("migrate: %v", err)
		exitFunc(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	command := args[0]
	steps := 1
	switch command {
	case cmdUp, cmdVersion, cmdStatus:
	case cmdDown:
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid down steps: %q", args[1])
			}
			steps = n
		}
	default:
		return fmt.Errorf("unknown command %q. %s", command, usage)
	}

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		return errors.New("DATABASE_URL is required")
	}

	migrations, err := loadMigrations(migrationsFS)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	pool, err := openPool(ctx, dsn)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := ensureMigrationTable(ctx, pool); err != nil {
		return fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	return execute(ctx, pool, migrations, command, steps)
}

func execute(ctx context.Context, pool *pgxpool.Pool, migrations []migration, command string, steps int) error {
	switch command {
	case cmdUp:
		applied, err := applyUp(ctx, pool, migrations)
		if err != nil {
			return fmt.Errorf("apply migrations up: %w", err)
		}
		log.Printf("migrations up complete (%d applied)", applied)
	case cmdDown:
		rolledBack, err := applyDown(ctx, pool, migrations, steps)
		if err != nil {
			return fmt.Errorf("apply migrations down: %w", err)
		}
		log.Printf("migrations down complete (%d rolled back)", rolledBack)
	case cmdVersion:
		version, name, err := currentVersion(ctx, pool)
		if err != nil {
			return fmt.Errorf("read current version: %w", err)
		}
		if version == 0 {
			log.Println("no migrations applied")
			return nil
		}
		log.Printf("current version: %d (%s)", version, name)
	case cmdStatus:
		applied, err := loadAppliedVersions(ctx, pool)
		if err != nil {
			return fmt.Errorf("read applied versions: %w", err)
		}
		for _, line := range statusLines(migrations, applied) {
			log.Println(line)
		}
	}
	return nil
}

// statusLines renders one line per known migration in version order.
func statusLines(migrations []migration, applied map[int64]struct{}) []string {
	lines := make([]string, 0, len(migrations))
	for _, m := range migrations {
		state := "pending"
		if _, ok := applied[m.Version]; ok {
			state = "applied"
		}
		lines = append(lines, fmt.Sprintf("%03d %-40s %s", m.Version, m.Name, state))
	}
	return lines
}
