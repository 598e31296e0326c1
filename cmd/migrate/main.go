package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
)

// migrator is the subset of *migrate.Migrate the command drives.
type migrator interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (uint, bool, error)
	Force(version int) error
	Close() (error, error)
}

var newMigrator = func(sourceURL, dbURL string) (migrator, error) {
	return migrate.New(sourceURL, dbURL)
}

func main() {
	_ = godotenv.Load()

	mode := flag.String("mode", "up", "migration mode: up, down, steps, version or force")
	arg := flag.String("n", "", "step count for steps, target version for force")
	dir := flag.String("dir", "./migrations", "migrations directory")
	flag.Parse()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		log.Fatal("DB_URL not set in environment")
	}

	m, err := newMigrator("file://"+*dir, dbURL)
	if err != nil {
		log.Fatalf("failed to init migrator: %v", err)
	}
	defer m.Close()

	if err := run(m, *mode, *arg); err != nil {
		log.Fatal(err)
	}
}

func run(m migrator, mode, arg string) error {
	var err error
	switch mode {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	case "steps":
		n, convErr := strconv.Atoi(arg)
		if convErr != nil || n == 0 {
			return fmt.Errorf("steps needs a non-zero integer, got %q", arg)
		}
		err = m.Steps(n)
	case "force":
		v, convErr := strconv.Atoi(arg)
		if convErr != nil {
			return fmt.Errorf("force needs a version, got %q", arg)
		}
		err = m.Force(v)
	case "version":
	default:
		return fmt.Errorf("unknown mode: %s (use up, down, steps, version or force)", mode)
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("no change")
		err = nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", mode, err)
	}

	return printVersion(m)
}

func printVersion(m migrator) error {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		fmt.Println("no migrations applied")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read version: %w", err)
	}
	fmt.Printf("version %d (dirty=%t)\n", v, dirty)
	return nil
}
