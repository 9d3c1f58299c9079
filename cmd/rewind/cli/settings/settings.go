// Package settings provides configuration loading for rewind.
// This package is separate from cli so engine packages can import it
// without creating an import cycle (cli imports checkpoint and session).
package settings

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rewindkit/cli/cmd/rewind/cli/paths"
)

const (
	// SettingsFile is the path to the rewind settings file
	SettingsFile = paths.RewindDir + "/" + paths.SettingsFileName
	// SettingsLocalFile is the path to the local settings override file (not committed)
	SettingsLocalFile = ".rewind/settings.local.json"
)

// Defaults applied when fields are missing from the settings files.
const (
	DefaultMaxCheckpoints  = 100
	DefaultMaxFileSize     = 10 << 20 // 10 MiB
	DefaultMaxDirFileCount = 200
	DefaultPruneEveryNth   = 10
)

// DefaultIgnoredDirs are directory names excluded from snapshots regardless of
// gitignore rules: dependency caches, build output, virtual environments.
var DefaultIgnoredDirs = []string{
	"node_modules",
	"vendor",
	"dist",
	"build",
	"target",
	"__pycache__",
	".venv",
	"venv",
	".tox",
	".cache",
}

// Settings represents the .rewind/settings.json configuration
type Settings struct {
	// Enabled indicates whether rewind is active. When false, CLI commands
	// show a disabled message and hooks exit silently. Defaults to true.
	Enabled bool `json:"enabled"`

	// LogLevel sets the logging verbosity (debug, info, warn, error).
	// Can be overridden by REWIND_LOG_LEVEL environment variable.
	// Defaults to "info".
	LogLevel string `json:"log_level,omitempty"`

	// MaxCheckpoints bounds the number of live checkpoint refs per repository.
	// Retention deletes the oldest refs beyond this cap. Defaults to 100.
	MaxCheckpoints int `json:"max_checkpoints,omitempty"`

	// IgnoredDirs are directory name patterns whose subtrees are never
	// snapshotted, independent of gitignore rules.
	IgnoredDirs []string `json:"ignored_dirs,omitempty"`

	// MaxFileSize is the untracked-file size cap in bytes. Defaults to 10 MiB.
	MaxFileSize int64 `json:"max_file_size,omitempty"`

	// MaxDirFileCount is the untracked-directory file-count cap. Defaults to 200.
	MaxDirFileCount int `json:"max_dir_file_count,omitempty"`

	// PruneEveryNth runs retention on every Nth capture. Defaults to 10.
	PruneEveryNth int `json:"prune_every_nth,omitempty"`

	// Telemetry controls anonymous usage analytics.
	// nil = not asked yet, true = opted in, false = opted out
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Load loads the rewind settings from .rewind/settings.json,
// then applies any overrides from .rewind/settings.local.json if it exists.
// Returns default settings if neither file exists.
// Works correctly from any subdirectory within the repository.
func Load() (*Settings, error) {
	settingsFileAbs, err := paths.AbsPath(SettingsFile)
	if err != nil {
		settingsFileAbs = SettingsFile // Fallback to relative
	}
	localSettingsFileAbs, err := paths.AbsPath(SettingsLocalFile)
	if err != nil {
		localSettingsFileAbs = SettingsLocalFile // Fallback to relative
	}

	settings, err := loadFromFile(settingsFileAbs)
	if err != nil {
		return nil, fmt.Errorf("reading settings file: %w", err)
	}

	localData, err := os.ReadFile(localSettingsFileAbs) //nolint:gosec // path is from AbsPath or constant
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local settings file: %w", err)
		}
		// Local file doesn't exist, continue without overrides
	} else {
		if err := mergeJSON(settings, localData); err != nil {
			return nil, fmt.Errorf("merging local settings: %w", err)
		}
	}

	applyDefaults(settings)

	return settings, nil
}

// loadFromFile loads settings from a specific file path.
// Returns default settings if the file doesn't exist.
func loadFromFile(filePath string) (*Settings, error) {
	settings := &Settings{
		Enabled: true, // Default to enabled
	}

	data, err := os.ReadFile(filePath) //nolint:gosec // path is from caller
	if err != nil {
		if os.IsNotExist(err) {
			applyDefaults(settings)
			return settings, nil
		}
		return nil, fmt.Errorf("%w", err)
	}

	if err := json.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("parsing settings file: %w", err)
	}
	applyDefaults(settings)

	return settings, nil
}

// mergeJSON merges JSON data into existing settings.
// Only fields present in the JSON override existing settings.
func mergeJSON(settings *Settings, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing JSON: %w", err)
	}

	if enabledRaw, ok := raw["enabled"]; ok {
		var e bool
		if err := json.Unmarshal(enabledRaw, &e); err != nil {
			return fmt.Errorf("parsing enabled field: %w", err)
		}
		settings.Enabled = e
	}

	if logLevelRaw, ok := raw["log_level"]; ok {
		var ll string
		if err := json.Unmarshal(logLevelRaw, &ll); err != nil {
			return fmt.Errorf("parsing log_level field: %w", err)
		}
		if ll != "" {
			settings.LogLevel = ll
		}
	}

	if maxRaw, ok := raw["max_checkpoints"]; ok {
		var m int
		if err := json.Unmarshal(maxRaw, &m); err != nil {
			return fmt.Errorf("parsing max_checkpoints field: %w", err)
		}
		if m > 0 {
			settings.MaxCheckpoints = m
		}
	}

	if dirsRaw, ok := raw["ignored_dirs"]; ok {
		var dirs []string
		if err := json.Unmarshal(dirsRaw, &dirs); err != nil {
			return fmt.Errorf("parsing ignored_dirs field: %w", err)
		}
		if len(dirs) > 0 {
			settings.IgnoredDirs = dirs
		}
	}

	if sizeRaw, ok := raw["max_file_size"]; ok {
		var s int64
		if err := json.Unmarshal(sizeRaw, &s); err != nil {
			return fmt.Errorf("parsing max_file_size field: %w", err)
		}
		if s > 0 {
			settings.MaxFileSize = s
		}
	}

	if countRaw, ok := raw["max_dir_file_count"]; ok {
		var c int
		if err := json.Unmarshal(countRaw, &c); err != nil {
			return fmt.Errorf("parsing max_dir_file_count field: %w", err)
		}
		if c > 0 {
			settings.MaxDirFileCount = c
		}
	}

	if nthRaw, ok := raw["prune_every_nth"]; ok {
		var n int
		if err := json.Unmarshal(nthRaw, &n); err != nil {
			return fmt.Errorf("parsing prune_every_nth field: %w", err)
		}
		if n > 0 {
			settings.PruneEveryNth = n
		}
	}

	if telemetryRaw, ok := raw["telemetry"]; ok {
		var t bool
		if err := json.Unmarshal(telemetryRaw, &t); err != nil {
			return fmt.Errorf("parsing telemetry field: %w", err)
		}
		settings.Telemetry = &t
	}

	return nil
}

func applyDefaults(settings *Settings) {
	if settings.MaxCheckpoints <= 0 {
		settings.MaxCheckpoints = DefaultMaxCheckpoints
	}
	if len(settings.IgnoredDirs) == 0 {
		settings.IgnoredDirs = DefaultIgnoredDirs
	}
	if settings.MaxFileSize <= 0 {
		settings.MaxFileSize = DefaultMaxFileSize
	}
	if settings.MaxDirFileCount <= 0 {
		settings.MaxDirFileCount = DefaultMaxDirFileCount
	}
	if settings.PruneEveryNth <= 0 {
		settings.PruneEveryNth = DefaultPruneEveryNth
	}
}
