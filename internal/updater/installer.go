// Package updater downloads the newest catalog release of an installed
// mod, verifies it and swaps it into the mods directory.
package updater

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/blackwell-systems/modsync/internal/catalog"
	"github.com/blackwell-systems/modsync/internal/mods"
)

var slugPattern = regexp.MustCompile(`(?i)curseforge\.com/[^/]+/mods/([^/?\s]+)`)

// tempPattern names in-progress downloads inside the mods directory.
const tempPattern = ".modsync-*.tmp"

// Catalog is the part of the catalog client the installer needs.
type Catalog interface {
	GetBySlug(ctx context.Context, slug string) (*catalog.ModDetail, error)
	GetDownloadURL(ctx context.Context, modID, fileID int) (string, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}

// Refresher exposes the current snapshot and triggers refreshes.
type Refresher interface {
	Find(fileName string) (mods.Mod, bool)
	Mods() []mods.Mod
	Refresh(ctx context.Context, force bool) ([]mods.Mod, error)
}

// Cache drops stale resolution data after an update.
type Cache interface {
	InvalidateMod(name string) error
}

// Recorder receives update outcomes. internal/metrics implements it.
type Recorder interface {
	UpdateDone(outcome string)
}

// Options controls a single update.
type Options struct {
	// SkipRefresh leaves the snapshot as is after installing. Bulk
	// updates refresh once at the end instead.
	SkipRefresh bool
}

// Result describes a successful update.
type Result struct {
	Mod         string `json:"mod"`
	OldFileName string `json:"oldFileName"`
	NewFileName string `json:"newFileName"`
	Version     string `json:"version,omitempty"`
}

// Installer applies updates to a mods directory.
type Installer struct {
	modsPath  string
	catalog   Catalog
	refresher Refresher
	cache     Cache
	recorder  Recorder
	logger    *slog.Logger
}

// Option configures an Installer.
type Option func(*Installer)

// WithRecorder reports update outcomes to r.
func WithRecorder(r Recorder) Option {
	return func(i *Installer) { i.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(i *Installer) { i.logger = l }
}

// New creates an Installer for modsPath.
func New(modsPath string, cat Catalog, r Refresher, cache Cache, opts ...Option) *Installer {
	i := &Installer{
		modsPath:  modsPath,
		catalog:   cat,
		refresher: r,
		cache:     cache,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return i
}

// SlugFromURL extracts the mod slug from a catalog page URL.
func SlugFromURL(url string) string {
	m := slugPattern.FindStringSubmatch(url)
	if m == nil {
		return ""
	}
	return m[1]
}

// Update replaces the installed archive fileName with the newest catalog
// release. Failures are returned as *Error.
func (i *Installer) Update(ctx context.Context, fileName string, opts Options) (*Result, error) {
	res, err := i.update(ctx, fileName, opts)
	i.record(err)
	if err != nil {
		i.logger.Warn("update failed", "file", fileName, "error", err)
		return nil, err
	}
	return res, nil
}

func (i *Installer) update(ctx context.Context, fileName string, opts Options) (*Result, error) {
	i.logger.Info("starting update", "file", fileName)

	mod, ok := i.refresher.Find(fileName)
	if !ok {
		return nil, newError(KindNotFound, fileName, nil)
	}
	if !mod.Resolved() {
		return nil, newError(KindNoCatalogURL, mod.Name, nil)
	}

	slug := SlugFromURL(mod.CatalogURL)
	if slug == "" {
		return nil, newError(KindUnparseableURL, mod.CatalogURL, nil)
	}
	i.logger.Debug("extracted slug", "slug", slug, "url", mod.CatalogURL)

	detail, err := i.catalog.GetBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			err = nil
		}
		return nil, newError(KindNotOnCatalog, slug, err)
	}

	file := catalog.LatestFile(detail.LatestFiles)
	if file == nil {
		return nil, newError(KindNoFiles, slug, nil)
	}
	i.logger.Info("latest file", "file", file.FileName, "id", file.ID)

	downloadURL := file.DownloadURL
	if downloadURL == "" {
		downloadURL, err = i.catalog.GetDownloadURL(ctx, detail.ID, file.ID)
		if err != nil {
			return nil, newError(KindDownloadFailed, slug, err)
		}
	}
	if downloadURL == "" {
		return nil, newError(KindDistributionNotAllowed, slug, nil)
	}

	newFileName := file.FileName
	if newFileName == "" {
		newFileName = fmt.Sprintf("%s-%s.jar", mod.Name, mod.LatestVersion)
	}
	if newFileName != filepath.Base(newFileName) || newFileName == "." || newFileName == ".." {
		return nil, newError(KindUpdateFailed, "unsafe file name "+newFileName, nil)
	}

	tmpPath, err := i.download(ctx, downloadURL, *file)
	if err != nil {
		return nil, err
	}
	installed := false
	defer func() {
		if !installed {
			os.Remove(tmpPath)
		}
	}()

	oldPath := filepath.Join(i.modsPath, mod.FileName)
	newPath := filepath.Join(i.modsPath, newFileName)

	if err := os.Rename(tmpPath, newPath); err != nil {
		return nil, newError(KindUpdateFailed, "", fmt.Errorf("failed to install %s: %w", newFileName, err))
	}
	installed = true
	i.logger.Info("installed new file", "path", newPath)

	if !strings.EqualFold(mod.FileName, newFileName) {
		if err := os.Remove(oldPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			i.logger.Warn("failed to delete old file", "path", oldPath, "error", err)
		} else {
			i.logger.Info("deleted old file", "path", oldPath)
		}
	}

	if err := i.cache.InvalidateMod(mod.Name); err != nil {
		i.logger.Warn("failed to invalidate cache", "mod", mod.Name, "error", err)
	}

	if !opts.SkipRefresh {
		if _, err := i.refresher.Refresh(ctx, false); err != nil {
			i.logger.Warn("refresh after update failed", "error", err)
		}
	}

	i.logger.Info("mod updated", "mod", mod.Name, "from", mod.FileName, "to", newFileName)
	return &Result{
		Mod:         mod.Name,
		OldFileName: mod.FileName,
		NewFileName: newFileName,
		Version:     catalog.LatestVersion([]catalog.File{*file}),
	}, nil
}

// download streams url into a temp file in the mods directory and checks
// it against the published hash. The temp file is removed on failure.
func (i *Installer) download(ctx context.Context, url string, file catalog.File) (string, error) {
	i.logger.Info("downloading", "url", url)

	body, err := i.catalog.Download(ctx, url)
	if err != nil {
		return "", newError(KindDownloadFailed, "", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp(i.modsPath, tempPattern)
	if err != nil {
		return "", newError(KindUpdateFailed, "", fmt.Errorf("failed to create temp file: %w", err))
	}
	ok := false
	defer func() {
		if !ok {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	expected, h, algo := expectedHash(file)
	var w io.Writer = tmp
	if h != nil {
		w = io.MultiWriter(tmp, h)
	}

	if _, err := io.Copy(w, body); err != nil {
		return "", newError(KindDownloadFailed, "", err)
	}
	if err := tmp.Close(); err != nil {
		return "", newError(KindUpdateFailed, "", fmt.Errorf("failed to write temp file: %w", err))
	}

	if h == nil {
		i.logger.Warn("no hash available for verification, proceeding without integrity check", "file", file.FileName)
	} else {
		got := hex.EncodeToString(h.Sum(nil))
		if !strings.EqualFold(got, expected) {
			i.logger.Error("hash mismatch", "algo", algo, "expected", expected, "got", got)
			return "", newError(KindIntegrityFailed, file.FileName, nil)
		}
		i.logger.Info("hash verification passed", "algo", algo)
	}

	ok = true
	return tmp.Name(), nil
}

// expectedHash picks MD5 when published and SHA-1 otherwise.
func expectedHash(file catalog.File) (string, hash.Hash, string) {
	if v := file.Hash(catalog.HashAlgoMD5); v != "" {
		return v, md5.New(), "md5"
	}
	if v := file.Hash(catalog.HashAlgoSHA1); v != "" {
		return v, sha1.New(), "sha1"
	}
	return "", nil, ""
}

// BulkResult is the outcome of UpdateAll.
type BulkResult struct {
	Updated []Result      `json:"updated"`
	Failed  []BulkFailure `json:"failed"`
}

// BulkFailure is one failed update of UpdateAll.
type BulkFailure struct {
	FileName string `json:"fileName"`
	Error    string `json:"error"`
}

// UpdateAll updates every mod with a newer catalog release and refreshes
// once at the end. A failed mod does not stop the others.
func (i *Installer) UpdateAll(ctx context.Context) (*BulkResult, error) {
	out := &BulkResult{Updated: []Result{}, Failed: []BulkFailure{}}

	for _, m := range i.refresher.Mods() {
		if !m.HasUpdate() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}

		res, err := i.Update(ctx, m.FileName, Options{SkipRefresh: true})
		if err != nil {
			out.Failed = append(out.Failed, BulkFailure{FileName: m.FileName, Error: err.Error()})
			continue
		}
		out.Updated = append(out.Updated, *res)
	}

	if len(out.Updated) > 0 {
		if _, err := i.refresher.Refresh(ctx, false); err != nil {
			i.logger.Warn("refresh after bulk update failed", "error", err)
		}
	}

	i.logger.Info("bulk update finished", "updated", len(out.Updated), "failed", len(out.Failed))
	return out, nil
}

func (i *Installer) record(err error) {
	if i.recorder == nil {
		return
	}
	if err == nil {
		i.recorder.UpdateDone("success")
		return
	}
	var ue *Error
	if errors.As(err, &ue) {
		i.recorder.UpdateDone(ue.Kind.String())
		return
	}
	i.recorder.UpdateDone("error")
}
