package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"tablebook/internal/config"
	"tablebook/internal/database"
	"tablebook/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

type TablesConfig struct {
	Tables []models.Table `yaml:"tables"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		tablesPath = flag.String("tables", "configs/tables.yaml", "path to tables.yaml")
		dbPath     = flag.String("db", "./data/reservations.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*tablesPath)
	if err != nil {
		return fmt.Errorf("read tables: %w", err)
	}
	var cfg TablesConfig
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse tables: %w", err)
	}
	if len(cfg.Tables) == 0 {
		return fmt.Errorf("no tables in yaml")
	}
	if err = config.ValidateTables(cfg.Tables); err != nil {
		return fmt.Errorf("validate tables: %w", err)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err = db.SeedTables(ctx, cfg.Tables); err != nil {
		return fmt.Errorf("seed tables: %w", err)
	}

	fmt.Printf("done: seeded=%d\n", len(cfg.Tables))
	return nil
}
