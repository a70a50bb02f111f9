package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"video-transcriber/internal/domain"
)

// Environment variable names recognized by ApplyEnv.
const (
	EnvListenAddr        = "VT_LISTEN_ADDR"
	EnvModelPath         = "VT_MODEL_PATH"
	EnvOutputDir         = "VT_OUTPUT_DIR"
	EnvDataDir           = "VT_DATA_DIR"
	EnvMaxUploadBytes    = "VT_MAX_UPLOAD_BYTES"
	EnvExtractTimeoutSec = "VT_EXTRACT_TIMEOUT_SEC"
)

// ApplyEnv overlays a .env file (when present) and process environment
// variables on top of stored settings. Environment values win over the
// settings file; malformed numeric values are ignored.
func ApplyEnv(cfg domain.Settings) domain.Settings {
	_ = godotenv.Load()

	if v := os.Getenv(EnvListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(EnvModelPath); v != "" {
		cfg.ModelPath = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv(EnvMaxUploadBytes); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxUploadBytes = n
		}
	}
	if v := os.Getenv(EnvExtractTimeoutSec); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ExtractTimeoutSec = n
		}
	}

	return cfg
}
