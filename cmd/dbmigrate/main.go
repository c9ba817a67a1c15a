package main

import (
	"fmt"
	"os"

	"github.com/rvangils/accountd/internal/db"
	"github.com/rvangils/accountd/internal/dbmigrate"
)

const helpText = `Usage: dbmigrate [sqlite_file]`

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, helpText)
		os.Exit(1)
	}

	dbFile := os.Args[1]

	sqlDB, err := db.OpenSQLite(dbFile, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer sqlDB.Close()

	if err := dbmigrate.Up(sqlDB); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		os.Exit(1)
	}

	version, dirty, err := dbmigrate.Version(sqlDB)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to get schema version: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("schema at version %d (dirty: %v)\n", version, dirty)
}
