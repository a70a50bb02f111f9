package bootstrap

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"video-transcriber/internal/domain"
)

const modelDownloadTimeout = 45 * time.Minute

var errUnknownModel = errors.New("unknown model id")

var voskModelCatalog = []domain.VoskModelOption{
	{
		ID:          "small-en-us",
		Name:        "Small (English, US)",
		DirName:     "vosk-model-small-en-us-0.15",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-en-us-0.15.zip",
		SizeLabel:   "~40 MB",
		Description: "Lightweight English model for fast transcription.",
	},
	{
		ID:          "en-us",
		Name:        "Full (English, US)",
		DirName:     "vosk-model-en-us-0.22",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-en-us-0.22.zip",
		SizeLabel:   "~1.8 GB",
		Description: "Large English model with the best accuracy.",
	},
	{
		ID:          "small-it",
		Name:        "Small (Italian)",
		DirName:     "vosk-model-small-it-0.22",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-it-0.22.zip",
		SizeLabel:   "~48 MB",
		Description: "Lightweight Italian model.",
	},
	{
		ID:          "small-de",
		Name:        "Small (German)",
		DirName:     "vosk-model-small-de-0.15",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-de-0.15.zip",
		SizeLabel:   "~45 MB",
		Description: "Lightweight German model.",
	},
	{
		ID:          "small-fr",
		Name:        "Small (French)",
		DirName:     "vosk-model-small-fr-0.22",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-fr-0.22.zip",
		SizeLabel:   "~41 MB",
		Description: "Lightweight French model.",
	},
	{
		ID:          "small-es",
		Name:        "Small (Spanish)",
		DirName:     "vosk-model-small-es-0.42",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-es-0.42.zip",
		SizeLabel:   "~39 MB",
		Description: "Lightweight Spanish model.",
	},
	{
		ID:          "small-ru",
		Name:        "Small (Russian)",
		DirName:     "vosk-model-small-ru-0.22",
		URL:         "https://alphacephei.com/vosk/models/vosk-model-small-ru-0.22.zip",
		SizeLabel:   "~45 MB",
		Description: "Lightweight Russian model.",
	},
}

// ModelOptions returns the built-in model presets with their local
// install state filled in.
func (a *App) ModelOptions() []domain.VoskModelOption {
	models := make([]domain.VoskModelOption, len(voskModelCatalog))
	copy(models, voskModelCatalog)

	modelsDir := modelsDirFor(a.snapshotSettings())
	for i := range models {
		localPath := filepath.Join(modelsDir, models[i].DirName)
		if info, err := os.Stat(localPath); err == nil && info.IsDir() {
			models[i].Downloaded = true
			models[i].LocalPath = localPath
		}
	}
	return models
}

// InstallModel downloads one catalog model, unpacks it under the
// models directory, and points the configured model path at it.
func (a *App) InstallModel(ctx context.Context, modelID string) (domain.VoskModelOption, error) {
	id := strings.TrimSpace(modelID)
	model, found := voskModelByID(id)
	if !found {
		return domain.VoskModelOption{}, fmt.Errorf("%w: %s", errUnknownModel, id)
	}

	settings := a.snapshotSettings()
	modelsDir := modelsDirFor(settings)
	localPath := filepath.Join(modelsDir, model.DirName)

	if info, err := os.Stat(localPath); err != nil || !info.IsDir() {
		zipPath := filepath.Join(modelsDir, model.DirName+".zip")
		if err := downloadURLToFile(ctx, zipPath, model.URL, modelDownloadTimeout); err != nil {
			return domain.VoskModelOption{}, fmt.Errorf("download model %s: %w", model.Name, err)
		}
		if err := extractModelZip(zipPath, modelsDir); err != nil {
			_ = os.Remove(zipPath)
			return domain.VoskModelOption{}, fmt.Errorf("unpack model %s: %w", model.Name, err)
		}
		_ = os.Remove(zipPath)

		if info, err := os.Stat(localPath); err != nil || !info.IsDir() {
			return domain.VoskModelOption{}, fmt.Errorf("archive did not contain expected directory %s", model.DirName)
		}
	}

	settings.ModelPath = localPath
	if err := a.Store.Save(settings); err != nil {
		return domain.VoskModelOption{}, fmt.Errorf("save settings: %w", err)
	}
	a.applySettings(settings, a.checker.Run(settings))

	model.Downloaded = true
	model.LocalPath = localPath
	return model, nil
}

// modelsDirFor derives the directory holding unpacked models from the
// configured model path.
func modelsDirFor(settings domain.Settings) string {
	modelPath := strings.TrimSpace(settings.ModelPath)
	if modelPath != "" {
		return filepath.Dir(modelPath)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "models"
	}
	return filepath.Join(homeDir, ".video-transcriber", "models")
}

func voskModelByID(id string) (domain.VoskModelOption, bool) {
	for _, model := range voskModelCatalog {
		if model.ID == id {
			return model, true
		}
	}
	return domain.VoskModelOption{}, false
}

// downloadURLToFile fetches a URL to a destination path through a
// temporary file, so a partial download never masquerades as a
// finished one.
func downloadURLToFile(ctx context.Context, destinationPath, sourceURL string, timeout time.Duration) error {
	if err := os.MkdirAll(filepath.Dir(destinationPath), 0o755); err != nil {
		return fmt.Errorf("prepare destination directory: %w", err)
	}

	tmpPath := destinationPath + ".download"
	if err := os.Remove(tmpPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "video-transcriber")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected HTTP status: %s", resp.Status)
	}

	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create temporary file: %w", err)
	}

	_, copyErr := io.Copy(file, resp.Body)
	closeErr := file.Close()
	if copyErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write destination file: %w", copyErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close destination file: %w", closeErr)
	}

	if err := os.Remove(destinationPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("remove old destination file: %w", err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("move downloaded file into place: %w", err)
	}

	return nil
}

// extractModelZip unpacks a model archive into extractDir. Entries
// that would escape the extraction directory abort the unpack.
func extractModelZip(zipPath, extractDir string) error {
	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return err
	}
	defer reader.Close()

	for _, file := range reader.File {
		cleanName := filepath.Clean(file.Name)
		if cleanName == "." || cleanName == "" {
			continue
		}
		targetPath := filepath.Join(extractDir, cleanName)
		if !isWithinBaseDir(extractDir, targetPath) {
			return fmt.Errorf("archive contains invalid path: %s", file.Name)
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return err
		}

		src, err := file.Open()
		if err != nil {
			return err
		}
		dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, file.Mode())
		if err != nil {
			_ = src.Close()
			return err
		}

		_, copyErr := io.Copy(dst, src)
		srcCloseErr := src.Close()
		dstCloseErr := dst.Close()
		if copyErr != nil {
			return copyErr
		}
		if srcCloseErr != nil {
			return srcCloseErr
		}
		if dstCloseErr != nil {
			return dstCloseErr
		}
	}
	return nil
}

func isWithinBaseDir(baseDir, targetPath string) bool {
	relative, err := filepath.Rel(filepath.Clean(baseDir), filepath.Clean(targetPath))
	if err != nil {
		return false
	}
	return relative == "." || (!strings.HasPrefix(relative, "..") && relative != "")
}
