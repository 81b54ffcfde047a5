package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wellingtonag/newsletter-node/internal/database"
)

const (
	migrationUp   = "up"
	migrationDown = "down"
)

func main() {
	var dsn, migrationType string
	flag.StringVar(&dsn, "dsn", os.Getenv("DATABASE_URL"), "postgres connection url")
	flag.StringVar(&migrationType, "migration-type", migrationUp, "migration type (up or down)")
	flag.Parse()

	if dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn is required (flag -dsn or DATABASE_URL)")
		os.Exit(2)
	}

	var err error
	switch migrationType {
	case migrationUp:
		err = database.Migrate(dsn)
	case migrationDown:
		err = database.MigrateDown(dsn)
	default:
		fmt.Fprintf(os.Stderr, "unknown migration type %q\n", migrationType)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("migrations %s applied successfully\n", migrationType)
}
