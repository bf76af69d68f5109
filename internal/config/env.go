package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes environment variables read directly by the CLI.
const EnvPrefix = "WARCBUILDER_"

var envFiles = []string{".env", ".env.local"}

// loadEnvFiles loads the first .env style file that exists. Variables
// already present in the process environment are not overwritten.
func loadEnvFiles() {
	for _, name := range envFiles {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			slog.Warn("failed to load env file", "file", name, "error", err)
			continue
		}
		slog.Debug("loaded environment variables", "file", name)
		return
	}
}
