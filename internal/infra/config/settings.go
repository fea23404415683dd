package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sotakimura/conductor/internal/app/config"
)

// RawSettings represents the structure of the setting.json file.
// Pointer fields distinguish "absent" from zero values so defaults only
// apply to keys the user did not set.
type RawSettings struct {
	Home          *string           `json:"home"`
	DefaultEngine *string           `json:"default_engine"`
	EngineBins    map[string]string `json:"engine_bins"`
	TimeoutSec    *int              `json:"timeout_sec"`

	Validate    *bool   `json:"validate"`
	StrictFsync *bool   `json:"strict_fsync"`
	StderrLevel *string `json:"stderr_level"`
}

// LoadSettings loads configuration from setting.json only.
// Priority: setting.json > defaults
func LoadSettings(baseDir string) (*config.AppConfig, error) {
	settings := &RawSettings{}
	configSource := "default"

	jsonPath := filepath.Join(baseDir, "setting.json")
	if data, err := os.ReadFile(jsonPath); err == nil {
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", jsonPath, err)
		}
		configSource = "json"
	}

	applyDefaults(settings, baseDir)

	return config.NewAppConfig(
		*settings.Home,
		*settings.DefaultEngine,
		settings.EngineBins,
		*settings.TimeoutSec,
		*settings.Validate,
		*settings.StrictFsync,
		*settings.StderrLevel,
		configSource,
	), nil
}

// applyDefaults fills in default values for any nil fields
func applyDefaults(settings *RawSettings, baseDir string) {
	if settings.Home == nil {
		v := baseDir
		settings.Home = &v
	}
	if settings.DefaultEngine == nil {
		v := "claude"
		settings.DefaultEngine = &v
	}
	if settings.EngineBins == nil {
		settings.EngineBins = map[string]string{}
	}
	if settings.TimeoutSec == nil {
		v := 900 // 15 minutes for complex turns
		settings.TimeoutSec = &v
	}
	if settings.Validate == nil {
		v := false
		settings.Validate = &v
	}
	if settings.StrictFsync == nil {
		v := false
		settings.StrictFsync = &v
	}
	if settings.StderrLevel == nil {
		v := "info"
		settings.StderrLevel = &v
	}
}
