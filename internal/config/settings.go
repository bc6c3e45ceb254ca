package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ealonsogzl/era5-fetcher/internal/model"
)

// DateFormat is the calendar date layout used in settings and flags.
// Only the month part matters for planning; the day selects no finer
// granularity than the months it falls in.
const DateFormat = "2006-01-02"

// Settings holds all configuration options for a retrieval run.
type Settings struct {
	// Retrieval settings
	Product        model.ProductType `json:"product"`
	StartDate      string            `json:"start_date"`
	EndDate        string            `json:"end_date"`
	OutputDir      string            `json:"output_dir"`
	BBox           model.BoundingBox `json:"bbox"`
	TimeStep       int               `json:"time_step"`
	Kind           model.Kind        `json:"kind"`
	PressureLevels []int             `json:"pressure_levels,omitempty"`

	// Download settings
	Concurrency int  `json:"concurrency"`
	AutoConfirm bool `json:"auto_confirm"`

	// Reporting
	Verbose bool   `json:"verbose"`
	LogFile string `json:"log_file,omitempty"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		Product:     model.ProductReanalysis,
		OutputDir:   ".",
		TimeStep:    1,
		Kind:        model.KindSurface,
		Concurrency: 10,
	}
}

// Load reads settings from a JSON file. A nonexistent path yields the
// defaults rather than an error.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if err := json.Unmarshal(data, settings); err != nil {
		return nil, err
	}

	return settings, nil
}

// Save writes settings to a JSON file.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Dates parses the configured date range.
func (s *Settings) Dates() (start, end time.Time, err error) {
	start, err = time.Parse(DateFormat, s.StartDate)
	if err != nil {
		return start, end, &model.ConfigError{Msg: fmt.Sprintf("start date %q: expected YYYY-MM-DD", s.StartDate)}
	}
	end, err = time.Parse(DateFormat, s.EndDate)
	if err != nil {
		return start, end, &model.ConfigError{Msg: fmt.Sprintf("end date %q: expected YYYY-MM-DD", s.EndDate)}
	}
	if end.Before(start) {
		return start, end, &model.ConfigError{Msg: "end date precedes start date"}
	}
	return start, end, nil
}

// Validate checks the settings that do not depend on the filesystem.
func (s *Settings) Validate() error {
	if _, _, err := s.Dates(); err != nil {
		return err
	}
	if !s.Kind.Valid() {
		return &model.ConfigError{Msg: fmt.Sprintf("kind must be %q or %q, got %q", model.KindSurface, model.KindPressureLevel, s.Kind)}
	}
	if s.Kind == model.KindPressureLevel && len(s.PressureLevels) == 0 {
		return &model.ConfigError{Msg: "pressure levels are required for kind \"plev\""}
	}
	if s.Kind == model.KindSurface && len(s.PressureLevels) > 0 {
		return &model.ConfigError{Msg: "pressure levels are only valid for kind \"plev\""}
	}
	if _, err := model.TimeSteps(s.TimeStep); err != nil {
		return err
	}
	if s.Concurrency < 1 {
		return &model.ConfigError{Msg: fmt.Sprintf("concurrency must be positive, got %d", s.Concurrency)}
	}
	switch s.Product {
	case model.ProductReanalysis, model.ProductEnsembleMembers:
	default:
		return &model.ConfigError{Msg: fmt.Sprintf("unknown product type %q", s.Product)}
	}
	return nil
}
