// Command seed-root creates the platform root member. The root anchors the
// matrix: every orphaned registration falls back to it, so it must exist
// before the first member activates. Running twice is a no-op.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"

	"matrix-board-platform/config"
	"matrix-board-platform/internal/database"
	"matrix-board-platform/internal/matrix"
)

func main() {
	name := flag.String("name", "Platform Root", "display name for the root member")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDB(database.Config{
		Host:     cfg.DatabaseConfig.Host,
		Port:     cfg.DatabaseConfig.Port,
		User:     cfg.DatabaseConfig.User,
		Password: cfg.DatabaseConfig.Password,
		Database: cfg.DatabaseConfig.Database,
		SSLMode:  cfg.DatabaseConfig.SSLMode,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	store := database.NewStore(db)
	err = store.WithinTx(ctx, func(tx matrix.Tx) error {
		existing, err := tx.RootMember(ctx)
		if err == nil {
			fmt.Printf("Root member already exists: id=%d ref_id=%s\n", existing.ID, existing.RefID)
			return nil
		}
		if !errors.Is(err, matrix.ErrNotFound) {
			return err
		}

		refID := cfg.MatrixConfig.RootRefID
		if refID == "" {
			refID = matrix.NewRefID()
		}
		root := &matrix.Member{
			FullName:       *name,
			RefID:          refID,
			IsRoot:         true,
			Active:         true,
			PaymentStatus:  matrix.PaymentPaid,
			PaymentOrderID: matrix.NewPaymentOrderID(),
			CurrentBoard:   1,
		}
		if err := tx.CreateMember(ctx, root); err != nil {
			return err
		}
		if err := tx.MarkActivated(ctx, root.ID); err != nil {
			return err
		}
		fmt.Printf("Root member created: id=%d ref_id=%s\n", root.ID, root.RefID)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to seed root member: %v", err)
	}
}
