// Command seed loads a YAML restaurant catalog into the configured store.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/mmynk/grouporder/internal/config"
	"github.com/mmynk/grouporder/internal/storage/driver"
	"github.com/mmynk/grouporder/pkg/logging"
)

func main() {
	file := flag.String("file", "cmd/seed/restaurants.yaml", "path to the restaurant catalog")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	f, err := os.Open(*file)
	if err != nil {
		slog.Error("Failed to open catalog", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	restaurants, err := parseCatalog(f, time.Now().UTC())
	if err != nil {
		slog.Error("Invalid catalog", "file", *file, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	store, err := driver.Open(ctx, cfg)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	for _, r := range restaurants {
		if err := store.SaveRestaurant(ctx, r); err != nil {
			slog.Error("Failed to save restaurant", "restaurant_id", r.ID, "error", err)
			os.Exit(1)
		}
		slog.Info("Restaurant saved", "restaurant_id", r.ID, "name", r.Name, "menu_items", len(r.Menu))
	}
	slog.Info("Catalog loaded", "restaurants", len(restaurants))
}
