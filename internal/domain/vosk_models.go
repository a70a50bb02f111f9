package domain

// VoskModelOption describes one downloadable Vosk model preset.
type VoskModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DirName     string `json:"dirName"`
	URL         string `json:"url"`
	SizeLabel   string `json:"sizeLabel,omitempty"`
	Description string `json:"description,omitempty"`
	Downloaded  bool   `json:"downloaded"`
	LocalPath   string `json:"localPath,omitempty"`
}
