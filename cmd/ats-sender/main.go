package main

import (
	"fmt"
	"os"

	"github.com/ats/transfer-service/internal/sender"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file for local development. In production, env vars are set directly.
	_ = godotenv.Load()

	if err := sender.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
