// Command checkenv reports which required environment keys are missing.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Skotchmaster/storefront/pkg/config"
)

func main() {
	files := os.Args[1:]
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "checkenv: %s: %v\n", f, err)
			os.Exit(2)
		}
	}

	missing := config.Missing(config.RequiredKeys)
	if len(missing) > 0 {
		fmt.Fprintln(os.Stderr, "Missing required environment variables:")
		for _, k := range missing {
			fmt.Fprintf(os.Stderr, "  - %s\n", k)
		}
		os.Exit(1)
	}
	fmt.Printf("All %d required environment variables are set.\n", len(config.RequiredKeys))
}
