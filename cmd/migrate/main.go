package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"camserver/internal/repository/sqlite"
	"camserver/internal/service/storage"
)

func main() {
	snapshotDir := flag.String("snapshots", "snapshots", "Directory containing archived snapshots")
	dbPath := flag.String("db", "data/camserver.db", "Database path")
	flag.Parse()

	fmt.Printf("Indexing snapshots from %s into database %s\n", *snapshotDir, *dbPath)

	if err := os.MkdirAll(filepath.Dir(*dbPath), 0755); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	repo := sqlite.NewSnapshotRepository(db)
	res, err := storage.Reindex(*snapshotDir, repo)
	if err != nil {
		log.Fatalf("Failed to index snapshots: %v", err)
	}

	fmt.Printf("Added %d snapshots, %d already indexed\n", res.Added, res.Known)
	if res.Skipped > 0 {
		fmt.Printf("Skipped %d files (invalid name or unreadable)\n", res.Skipped)
	}

	if total, err := repo.Count(); err == nil {
		fmt.Printf("Total snapshots in database: %d\n", total)
	}
}
