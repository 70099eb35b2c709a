package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"syscall"

	"github.com/fieldops/fieldsync/internal/models"
)

const configFile = ".fieldsync/config.json"
const lockFile = ".fieldsync/config.json.lock"

// Sync defaults
const (
	DefaultPageSize           = 100
	DefaultDedupWindowSeconds = 2
)

// Load reads the config from disk
func Load(baseDir string) (*models.Config, error) {
	configPath := filepath.Join(baseDir, configFile)

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &models.Config{}, nil
		}
		return nil, err
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the config to disk using atomic write (temp file + rename)
func Save(baseDir string, cfg *models.Config) error {
	configPath := filepath.Join(baseDir, configFile)

	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write: temp file in same dir, then rename
	tmp, err := os.CreateTemp(dir, "config-*.json.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	return os.Rename(tmpName, configPath)
}

// withConfigLock serializes access to config.json using flock
func withConfigLock(baseDir string, fn func() error) error {
	lockPath := filepath.Join(baseDir, lockFile)

	if err := os.MkdirAll(filepath.Dir(lockPath), 0755); err != nil {
		return err
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		return err
	}
	defer syscall.Flock(int(f.Fd()), syscall.LOCK_UN)

	return fn()
}

// SetServer stores the API endpoint and credentials.
func SetServer(baseDir, serverURL, pushURL, apiKey string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.ServerURL = serverURL
		cfg.PushURL = pushURL
		cfg.APIKey = apiKey
		return Save(baseDir, cfg)
	})
}

// SetActor stores who this device syncs as.
func SetActor(baseDir string, actorType int, actorID int64, deviceID string) error {
	return withConfigLock(baseDir, func() error {
		cfg, err := Load(baseDir)
		if err != nil {
			return err
		}
		cfg.ActorType = actorType
		cfg.ActorID = actorID
		cfg.DeviceID = deviceID
		return Save(baseDir, cfg)
	})
}

// PageSize returns the configured sync page size, or the default.
func PageSize(cfg *models.Config) int {
	if cfg.PageSize > 0 {
		return cfg.PageSize
	}
	return DefaultPageSize
}

// DedupWindowSeconds returns the configured admission window, or the default.
func DedupWindowSeconds(cfg *models.Config) int {
	if cfg.DedupWindowSeconds > 0 {
		return cfg.DedupWindowSeconds
	}
	return DefaultDedupWindowSeconds
}
