package windlog

import (
	"fmt"
	"log"
	"os"
)

// RunMigrateCommand handles the 'migrate' subcommand dispatching.
func RunMigrateCommand(args []string, dbPath, migrationsDir string) {
	if len(args) < 1 {
		PrintMigrateHelp()
		os.Exit(1)
	}

	action := args[0]

	// Open without schema initialization; migrations manage the schema.
	db, err := OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open reading log: %v", err)
	}
	defer db.Close()

	switch action {
	case "up":
		handleMigrateUp(db, migrationsDir)

	case "down":
		handleMigrateDown(db, migrationsDir)

	case "status":
		handleMigrateStatus(db, migrationsDir)

	case "help":
		PrintMigrateHelp()

	default:
		fmt.Printf("Unknown migrate action: %s\n\n", action)
		PrintMigrateHelp()
		os.Exit(1)
	}
}

// handleMigrateUp applies all pending migrations
func handleMigrateUp(db *DB, migrationsDir string) {
	log.Printf("Running migrations...")
	if err := db.MigrateUp(migrationsDir); err != nil {
		log.Fatalf("Migration up failed: %v", err)
	}
	log.Println("✓ All migrations applied successfully")

	version, dirty, _ := db.MigrateVersion(migrationsDir)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// handleMigrateDown rolls back one migration
func handleMigrateDown(db *DB, migrationsDir string) {
	log.Printf("Rolling back one migration...")
	if err := db.MigrateDown(migrationsDir); err != nil {
		log.Fatalf("Migration down failed: %v", err)
	}
	log.Println("✓ Migration rolled back successfully")

	version, dirty, _ := db.MigrateVersion(migrationsDir)
	log.Printf("Current version: %d (dirty: %v)", version, dirty)
}

// handleMigrateStatus displays the current migration status
func handleMigrateStatus(db *DB, migrationsDir string) {
	version, dirty, err := db.MigrateVersion(migrationsDir)
	if err != nil {
		log.Fatalf("Failed to get migration status: %v", err)
	}

	fmt.Println("=== Migration Status ===")
	fmt.Printf("Current version: %d\n", version)
	fmt.Printf("Dirty: %v\n", dirty)
	if dirty {
		fmt.Println("\nWARNING: a migration failed mid-execution; inspect the database before retrying.")
	}
}

// PrintMigrateHelp displays the help message for the migrate command
func PrintMigrateHelp() {
	fmt.Println("Reading Log Migration Commands")
	fmt.Println()
	fmt.Println("Usage: anemometer migrate [options] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  up        Apply all pending migrations")
	fmt.Println("  down      Rollback one migration")
	fmt.Println("  status    Show current migration version and dirty state")
	fmt.Println("  help      Show this help message")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -db <path>          Path to the reading log (default: wind_data.db)")
	fmt.Println("  -migrations <dir>   Path to the migrations directory")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  anemometer migrate up")
	fmt.Println("  anemometer migrate -db wind_data.db status")
}
