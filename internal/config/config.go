// Package config centralizes environment reading and storage paths so the
// rest of the codebase does not repeat os.Getenv logic.
package config

import (
	"os"
	"path/filepath"
)

// Config holds everything read from the environment at startup.
type Config struct {
	Port string

	// Storage layout: one folder for audio, one for note JSON documents,
	// one for registries.
	StorageDir     string
	VoiceNotesDir  string
	TranscriptsDir string
	ProgramsDir    string
	FoldersDir     string

	// Primary provider: ordered, rotatable API keys for the same logical
	// endpoint.
	PrimaryBaseURL string
	PrimaryModel   string
	PrimaryKeys    []string

	// Secondary (fallback) provider: a single key.
	SecondaryBaseURL         string
	SecondaryKey             string
	SecondaryTitleModel      string
	SecondaryTranscribeModel string
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// collectPrimaryKeys gathers GEMINI_API_KEY plus numbered variants, in
// declaration order, skipping duplicates. Order matters: it is the rotation
// order.
func collectPrimaryKeys() []string {
	var keys []string
	seen := map[string]bool{}
	for _, name := range []string{
		"GEMINI_API_KEY",
		"GEMINI_API_KEY_1",
		"GEMINI_API_KEY_2",
		"GEMINI_API_KEY_3",
	} {
		if v := os.Getenv(name); v != "" && !seen[v] {
			seen[v] = true
			keys = append(keys, v)
		}
	}
	return keys
}

// Load reads the environment into a Config. godotenv.Load is expected to have
// run already (main does it first thing).
func Load() *Config {
	storage := envOr("STORAGE_DIR", "storage")
	return &Config{
		Port: envOr("PORT", "8080"),

		StorageDir:     storage,
		VoiceNotesDir:  filepath.Join(storage, "voice_notes"),
		TranscriptsDir: filepath.Join(storage, "transcriptions"),
		ProgramsDir:    filepath.Join(storage, "programs"),
		FoldersDir:     filepath.Join(storage, "folders"),

		PrimaryBaseURL: envOr("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		PrimaryModel:   envOr("GEMINI_MODEL", "gemini-2.5-flash"),
		PrimaryKeys:    collectPrimaryKeys(),

		SecondaryBaseURL:         envOr("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		SecondaryKey:             os.Getenv("OPENAI_API_KEY"),
		SecondaryTitleModel:      envOr("OPENAI_TITLE_MODEL", "gpt-4o-mini"),
		SecondaryTranscribeModel: envOr("OPENAI_TRANSCRIBE_MODEL", "whisper-1"),
	}
}

// EnsureDirs creates the storage folders if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.VoiceNotesDir, c.TranscriptsDir, c.ProgramsDir, c.FoldersDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}
