// Package settings persists ScannerSettings to a local JSON file.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"go-openclaw-scanner/internal/models"
)

const FileName = "scanner_settings.json"

type Store struct {
	mu       sync.Mutex
	filePath string
	logger   zerolog.Logger
}

// NewStore returns a store for path. A path ending in .json names the file;
// any other path is a directory that holds FileName.
func NewStore(path string, logger zerolog.Logger) *Store {
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		path = filepath.Join(path, FileName)
	}
	return &Store{
		filePath: path,
		logger:   logger.With().Str("component", "settings").Logger(),
	}
}

func (s *Store) Path() string {
	return s.filePath
}

// Load reads the settings file on top of the defaults, so fields missing from
// older files keep their default value. A missing or empty file yields the
// defaults.
func (s *Store) Load() (models.ScannerSettings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg := models.DefaultScannerSettings()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.logger.Info().Str("path", s.filePath).Msg("📋 No settings file, using defaults")
			return cfg, nil
		}
		return cfg, fmt.Errorf("read settings: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return cfg, nil
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return models.DefaultScannerSettings(), fmt.Errorf("parse %s: %w", s.filePath, err)
	}
	if cfg.Schedule != nil && strings.TrimSpace(*cfg.Schedule) == "" {
		cfg.Schedule = nil
	}
	return cfg, nil
}

// Save writes settings atomically (temp file + rename).
func (s *Store) Save(cfg models.ScannerSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("create settings directory: %w", err)
	}

	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		return fmt.Errorf("replace settings: %w", err)
	}
	s.logger.Debug().Str("path", s.filePath).Msg("💾 Saved scanner settings")
	return nil
}
