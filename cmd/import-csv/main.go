package main

import (
	"context"
	"flag"
	"log"
	"os"
	"path/filepath"

	"granthalaya/internal/ingest"
	"granthalaya/pkg/database"
	"granthalaya/pkg/logging"
	"granthalaya/pkg/utils"
)

func main() {
	var (
		deckIn    = flag.String("deck", "data/deck.csv", "input CSV path for the deck")
		granthaIn = flag.String("granthas", "data/granthas.csv", "input CSV path for granthas")
		imageIn   = flag.String("images", "data/images.csv", "input CSV path for scanned images")
		userID    = flag.String("user", "", "user id to attribute the deck to (optional)")
	)
	flag.Parse()

	utils.LoadEnvFile()
	logger := logging.MustNew(true)
	defer logger.Sync()

	db := database.MustOpen(database.DefaultConfig())
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	paths := []string{*deckIn, *granthaIn, *imageIn}
	names := make([]string, len(paths))
	files := make([][]byte, len(paths))
	for i, p := range paths {
		raw, err := os.ReadFile(p)
		if err != nil {
			log.Fatalf("read %s: %v", p, err)
		}
		names[i] = filepath.Base(p)
		files[i] = raw
	}

	batch, err := ingest.ParseBatch(names, files)
	if err != nil {
		log.Fatalf("parse batch failed: %v", err)
	}
	batch.Deck.UserID = *userID

	co := ingest.NewCoordinator(db, logger, utils.LoadServerConfig().IngestTimeout)
	res, err := co.Ingest(context.Background(), batch)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}

	log.Printf("✅ imported deck %s: %d granthas, %d images (%d new authors, %d new languages)",
		res.DeckID, res.Granthas, res.Images, res.AuthorsCreated, res.LanguagesCreated)
}
