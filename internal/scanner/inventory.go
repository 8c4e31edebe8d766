package scanner

import (
	"archive/zip"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/blackwell-systems/modsync/internal/mods"
	"github.com/blackwell-systems/modsync/internal/version"
)

const manifestName = "manifest.json"

// catalogURLMarker identifies a manifest website that already is a
// catalog page for a Hytale mod.
const catalogURLMarker = "curseforge.com/hytale/mods/"

// manifest is the subset of manifest.json modsync reads. Keys are
// matched case-insensitively by encoding/json.
type manifest struct {
	Name        string           `json:"Name"`
	Version     string           `json:"Version"`
	Description string           `json:"Description"`
	Website     string           `json:"Website"`
	Authors     []manifestAuthor `json:"Authors"`
}

type manifestAuthor struct {
	Name string `json:"Name"`
}

// IsArchive reports whether name has a mod archive extension.
func IsArchive(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".jar" || ext == ".zip"
}

// ScanDir reads every archive in dir and returns the mods sorted by name.
// A missing directory yields no mods. Archives that cannot be read or
// carry no manifest are logged and skipped.
func (s *Scanner) ScanDir(dir string) ([]mods.Mod, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("mods directory not found", "path", dir)
			return []mods.Mod{}, nil
		}
		return nil, fmt.Errorf("failed to read mods directory %s: %w", dir, err)
	}

	result := make([]mods.Mod, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsArchive(e.Name()) {
			continue
		}

		mod, ok, err := ReadArchive(filepath.Join(dir, e.Name()))
		if err != nil {
			s.logger.Warn("failed to read mod archive", "file", e.Name(), "error", err)
			continue
		}
		if !ok {
			s.logger.Debug("no manifest.json in archive", "file", e.Name())
			continue
		}

		result = append(result, mod)
		s.logger.Debug("extracted mod", "name", mod.Name, "version", mod.Version)
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := strings.ToLower(result[i].Name), strings.ToLower(result[j].Name)
		if a != b {
			return a < b
		}
		return result[i].FileName < result[j].FileName
	})

	return result, nil
}

// ReadArchive extracts the mod record from one archive. ok is false when
// the archive has no manifest.json at its root.
func ReadArchive(path string) (mod mods.Mod, ok bool, err error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return mods.Mod{}, false, fmt.Errorf("failed to open archive: %w", err)
	}
	defer zr.Close()

	f, err := zr.Open(manifestName)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return mods.Mod{}, false, nil
		}
		return mods.Mod{}, false, fmt.Errorf("failed to open %s: %w", manifestName, err)
	}
	defer f.Close()

	var m manifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return mods.Mod{}, false, fmt.Errorf("failed to parse %s: %w", manifestName, err)
	}

	return fromManifest(filepath.Base(path), m), true, nil
}

func fromManifest(fileName string, m manifest) mods.Mod {
	mod := mods.Mod{
		Name:        strings.TrimSpace(m.Name),
		FileName:    fileName,
		Version:     strings.TrimSpace(m.Version),
		Description: m.Description,
		Website:     strings.TrimSpace(m.Website),
		Authors:     []string{},
	}

	if mod.Name == "" {
		mod.Name = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	if mod.Version == "" || strings.EqualFold(mod.Version, "N/A") {
		mod.Version = version.FromFileName(fileName)
	}

	for _, a := range m.Authors {
		if name := strings.TrimSpace(a.Name); name != "" {
			mod.Authors = append(mod.Authors, name)
		}
	}

	if strings.Contains(mod.Website, catalogURLMarker) {
		mod.Resolve(mod.Website, "", mods.MethodManifest)
	}

	return mod
}
