// Package integration assembles the settlement storage from named presets.
// A preset bundles the database backend and its cache size, so operators
// pick "lite" for throwaway runs and "full" for a long-lived deployment
// without tuning each knob.
//
// Usage:
//
//	preset, _ := integration.GetPresetByName("full")
//	db, err := integration.OpenDatabase(preset, datadir)
package integration

import (
	"fmt"
	"path/filepath"

	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/ethdb/leveldb"
	"github.com/ethereum/go-ethereum/ethdb/memorydb"
	"github.com/ethereum/go-ethereum/log"
)

// Database backends.
const (
	MemoryDB  = "memory"
	LevelDB   = "ldb"
	dbDirName = "settlement"
)

// PresetConfig captures the storage parameters that vary across profiles.
type PresetConfig struct {
	Name          string // identifier used by --db.preset
	DBPreset      string // backend: MemoryDB or LevelDB
	CacheMB       int    // leveldb block cache and write buffer size (MB)
	Handles       int    // open file handles allowed to leveldb
	EnableMetrics bool   // whether the preset expects metrics export
}

func DefaultPreset() PresetConfig {
	return PresetConfig{
		Name:     "default",
		DBPreset: LevelDB,
		CacheMB:  64,
		Handles:  256,
	}
}

// LitePreset keeps everything in memory. State is lost on exit.
func LitePreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "lite"
	cfg.DBPreset = MemoryDB
	cfg.CacheMB = 0
	cfg.Handles = 0
	return cfg
}

// FullPreset is for a long-running deployment: larger caches, metrics on.
func FullPreset() PresetConfig {
	cfg := DefaultPreset()
	cfg.Name = "full"
	cfg.CacheMB = 512
	cfg.Handles = 1024
	cfg.EnableMetrics = true
	return cfg
}

// GetPresetByName looks up a preset by its identifier.
func GetPresetByName(name string) (PresetConfig, error) {
	switch name {
	case "lite":
		return LitePreset(), nil
	case "full":
		return FullPreset(), nil
	case "default", "":
		return DefaultPreset(), nil
	default:
		return PresetConfig{}, fmt.Errorf("unknown preset: %q (valid: lite, full, default)", name)
	}
}

// ApplyPreset overrides target with the non-zero fields of preset.
func ApplyPreset(target *PresetConfig, preset PresetConfig) {
	if preset.DBPreset != "" {
		target.DBPreset = preset.DBPreset
	}
	if preset.CacheMB > 0 {
		target.CacheMB = preset.CacheMB
	}
	if preset.Handles > 0 {
		target.Handles = preset.Handles
	}
	target.EnableMetrics = preset.EnableMetrics
	if preset.Name != "" {
		target.Name = preset.Name
	}
}

// DBPath is where a persistent preset keeps its files under datadir.
func DBPath(datadir string) string {
	return filepath.Join(datadir, dbDirName)
}

// OpenDatabase opens the key-value store described by preset.
func OpenDatabase(preset PresetConfig, datadir string) (ethdb.KeyValueStore, error) {
	switch preset.DBPreset {
	case MemoryDB:
		log.Debug("Opening in-memory settlement database", "preset", preset.Name)
		return memorydb.New(), nil
	case LevelDB:
		path := DBPath(datadir)
		log.Info("Opening settlement database", "preset", preset.Name, "path", path, "cache", preset.CacheMB, "handles", preset.Handles)
		db, err := leveldb.New(path, preset.CacheMB, preset.Handles, "settlement/db/", false)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		return db, nil
	}
	return nil, fmt.Errorf("unknown database backend %q", preset.DBPreset)
}
