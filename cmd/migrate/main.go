package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Rrens/formvault/internal/config"
	"github.com/Rrens/formvault/internal/repository/postgres"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	steps := flag.Int("steps", 1, "number of migrations to roll back with down")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: migrate [-steps n] up|down|version\n")
	}
	flag.Parse()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	dsn := cfg.Database.DSN()
	source := cfg.Database.MigrationsURL()
	fmt.Printf("Migrating database at %s:%d from %s...\n", cfg.Database.Host, cfg.Database.Port, source)

	switch cmd {
	case "up":
		err = postgres.RunMigrations(dsn, source)
	case "down":
		err = postgres.RollbackMigrations(dsn, source, *steps)
	case "version":
		var (
			version uint
			dirty   bool
		)
		version, dirty, err = postgres.MigrationVersion(dsn, source)
		if err == nil {
			fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate %s failed: %v\n", cmd, err)
		os.Exit(1)
	}
}
