package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"trading-alert-engine/config"
	"trading-alert-engine/internal/alert"
	"trading-alert-engine/internal/auth"
	"trading-alert-engine/internal/logging"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "list":
		runList()
	case "sweep":
		runSweep()
	case "hash-token":
		runHashToken()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Alert store administration tool")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  alerts-admin list            List all stored alerts")
	fmt.Println("  alerts-admin sweep           Remove expired alerts from the store")
	fmt.Println("  alerts-admin hash-token <t>  Print the bcrypt hash for an admin token")
}

func openRegistry(ctx context.Context) *alert.Registry {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{Level: "warn", Output: "stderr", Console: true})

	var store alert.Store
	switch cfg.StoreConfig.Backend {
	case "redis":
		store, err = alert.NewRedisStore(cfg.StoreConfig.Redis, logger)
	case "postgres":
		store, err = alert.NewPostgresStore(ctx, cfg.StoreConfig.Postgres.URL, logger)
	default:
		store = alert.NewFileStore(cfg.StoreConfig.FilePath, logger)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}

	registry, err := alert.NewRegistry(ctx, store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load registry: %v\n", err)
		os.Exit(1)
	}
	return registry
}

func runList() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := openRegistry(ctx)
	alerts := registry.List(false, "")
	sort.Slice(alerts, func(i, j int) bool {
		return alerts[i].CreatedAt.Before(alerts[j].CreatedAt)
	})

	if len(alerts) == 0 {
		fmt.Println("No alerts stored")
		return
	}

	fmt.Printf("%-36s  %-10s  %-12s  %-14s  %-8s  %-9s  %s\n",
		"ID", "SYMBOL", "KIND", "CONDITION", "ENABLED", "TRIGGERED", "EXPIRES")
	now := time.Now()
	for _, a := range alerts {
		expires := "never"
		if a.ExpiresAt != nil {
			expires = a.ExpiresAt.Format(time.RFC3339)
			if a.IsExpired(now) {
				expires += " (expired)"
			}
		}
		fmt.Printf("%-36s  %-10s  %-12s  %-14s  %-8t  %-9d  %s\n",
			a.ID, a.Symbol, a.Kind, a.Condition, a.Enabled, a.TriggeredCount, expires)
	}
	fmt.Printf("\n%d alerts total\n", len(alerts))
}

func runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	registry := openRegistry(ctx)
	swept, err := registry.SweepExpired(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sweep failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Removed %d expired alerts\n", swept)
}

func runHashToken() {
	if len(os.Args) < 3 {
		fmt.Fprintln(os.Stderr, "usage: alerts-admin hash-token <token>")
		os.Exit(1)
	}
	hash, err := auth.HashAdminToken(os.Args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to hash token: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}
