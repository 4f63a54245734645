package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"videokit/internal/infra"
	"videokit/internal/preferences"
)

func main() {
	var (
		keyFlag   string
		clearFlag bool
	)
	flag.StringVar(&keyFlag, "key", "", "Kie.ai API key to store (falls back to KIE_API_KEY)")
	flag.BoolVar(&clearFlag, "clear", false, "Remove the stored API key")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	key := strings.TrimSpace(keyFlag)
	if key == "" && !clearFlag {
		key = cfg.KieAPIKey
	}
	if key == "" && !clearFlag {
		fmt.Fprintln(os.Stderr, "API key is required via -key or KIE_API_KEY (or pass -clear)")
		os.Exit(1)
	}

	logger := infra.NewLogger("cli").With().Str("cmd", "apikey").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := infra.OpenDB(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	store := preferences.NewStore(infra.NewSQLRunner(db, logger))
	if clearFlag {
		if err := store.ClearAPIKey(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "failed to clear api key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Stored API key removed")
		return
	}
	if err := store.SetAPIKey(ctx, key); err != nil {
		fmt.Fprintf(os.Stderr, "failed to persist api key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("API key %s stored successfully\n", preferences.Mask(key))
}
