// Command migrate applies or rolls back the database schema.
//
//	migrate -path ./migrations up
//	migrate down
//	migrate -version 1 goto
//	migrate version
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lms-discussions-api/internal/config"
	"github.com/lms-discussions-api/internal/database"
	"github.com/lms-discussions-api/pkg/logger"
)

func main() {
	path := flag.String("path", "", "migrations directory (defaults to MIGRATIONS_PATH)")
	version := flag.Uint("version", 0, "target version for goto")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: migrate [flags] up|down|goto|version\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	log := logger.NewWithWriter("migrate", os.Stderr)

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if *path == "" {
		*path = cfg.Database.MigrationsPath
	}

	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = db.RunMigrations(*path)
	case "down":
		err = db.MigrateDown(*path)
	case "goto":
		if *version == 0 {
			log.Fatal().Msg("goto needs -version")
		}
		err = db.MigrateToVersion(*path, *version)
	case "version":
		var (
			v     uint
			dirty bool
		)
		v, dirty, err = db.MigrationVersion(*path)
		if err == nil {
			fmt.Printf("version=%d dirty=%t\n", v, dirty)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
}
