package config

import (
	"os"
	"path/filepath"

	"video-transcriber/internal/domain"
)

// DefaultSettings returns baseline local configuration for first launch.
func DefaultSettings() domain.Settings {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	base := filepath.Join(homeDir, ".video-transcriber")
	return domain.Settings{
		ModelPath:         filepath.Join(base, "models", "model"),
		OutputDir:         filepath.Join(base, "output"),
		DataDir:           filepath.Join(base, "data"),
		ListenAddr:        ":8080",
		MaxUploadBytes:    5 << 30,
		ExtractTimeoutSec: 600,
	}
}
