package app

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testEnv is a config directory, mods directory and fake CurseForge API.
type testEnv struct {
	modsDir string
	cfgPath string
	api     *httptest.Server
}

func zipBytes(t *testing.T, manifest string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("manifest.json")
	require.NoError(t, err)
	_, err = w.Write([]byte(manifest))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func manifestJSON(name, version, author string) string {
	return fmt.Sprintf(`{"Name": %q, "Version": %q, "Authors": [{"Name": %q}]}`, name, version, author)
}

// newTestEnv installs "Admin UI" 1.0.3 by Buuz135, which the fake API
// knows with a 1.0.4 release, and "Local Only", which it does not know.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	for _, key := range []string{"MODSYNC_MODS_PATH", "MODSYNC_DB", "MODSYNC_LISTEN", "CURSEFORGE_API_KEY",
		"MODSYNC_REFRESH_CRON", "MODSYNC_TIMEZONE", "MODSYNC_LOG_LEVEL", "MODSYNC_RATE_LIMIT_MS"} {
		t.Setenv(key, "")
	}

	modsDir := filepath.Join(root, "mods")
	require.NoError(t, os.MkdirAll(modsDir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(modsDir, "AdminUI-1.0.3.jar"),
		zipBytes(t, manifestJSON("Admin UI", "1.0.3", "Buuz135")), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(modsDir, "LocalOnly-0.1.jar"),
		zipBytes(t, manifestJSON("Local Only", "0.1", "Nobody")), 0644))

	release := zipBytes(t, manifestJSON("Admin UI", "1.0.4", "Buuz135"))
	sum := md5.Sum(release)

	var api *httptest.Server
	api = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/AdminUI-1.0.4.jar" {
			w.Write(release)
			return
		}
		if r.URL.Path != "/mods/search" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		q := r.URL.Query()
		if q.Get("searchFilter") != "Buuz135" && q.Get("slug") != "admin-ui" {
			json.NewEncoder(w).Encode(map[string]any{"data": []any{}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": []any{map[string]any{
			"id":      11,
			"name":    "Admin UI",
			"slug":    "admin-ui",
			"links":   map[string]any{"websiteUrl": "https://www.curseforge.com/hytale/mods/admin-ui"},
			"authors": []any{map[string]any{"name": "Buuz135"}},
			"latestFiles": []any{map[string]any{
				"id":          2,
				"displayName": "AdminUI 1.0.4",
				"fileName":    "AdminUI-1.0.4.jar",
				"fileDate":    "2026-01-10T10:00:00Z",
				"downloadUrl": api.URL + "/files/AdminUI-1.0.4.jar",
				"hashes":      []any{map[string]any{"value": hex.EncodeToString(sum[:]), "algo": 2}},
			}},
		}}})
	}))
	t.Cleanup(api.Close)

	cfgPath := filepath.Join(root, "config.yaml")
	cfg := fmt.Sprintf(`mods_path: %s
db_path: %s
curseforge:
  base_url: %s
  rate_limit_ms: 1
  page_size: 50
  max_offset: 100
`, modsDir, filepath.Join(root, "modsync.db"), api.URL)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0644))

	return &testEnv{modsDir: modsDir, cfgPath: cfgPath, api: api}
}

// run executes the root command with args and returns its stdout.
func (e *testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out, errOut bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&errOut)
	RootCmd.SetArgs(append([]string{"--config", e.cfgPath}, args...))
	t.Cleanup(func() {
		RootCmd.SetOut(nil)
		RootCmd.SetErr(nil)
		RootCmd.SetArgs(nil)
	})

	err := RootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores flag variables, which persist between executions.
func resetFlags() {
	configPath, dbPath, modsPath, logLevel = "", "", "", ""
	scanForce, scanQuiet = false, false
	listUpdates, listJSON = false, false
	updateAll = false
	serveDaemon, serveDaemonChild, serveStop = false, false, false
	servePIDFile, serveLogFile, serveListen = "", "", ""
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "modsync" {
		t.Errorf("expected Use to be 'modsync', got '%s'", RootCmd.Use)
	}

	if RootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}

	if RootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}

	for _, expected := range []string{"scan", "list", "update", "override", "status", "serve"} {
		if !found[expected] {
			t.Errorf("expected command '%s' to be registered", expected)
		}
	}
}

func TestRootCommandHasPersistentFlags(t *testing.T) {
	for _, name := range []string{"config", "db", "mods", "log-level"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
			continue
		}
		if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	e := newTestEnv(t)
	resetFlags()
	configPath = e.cfgPath
	dbPath = "/tmp/other.db"
	modsPath = "/srv/mods"
	logLevel = "debug"
	defer resetFlags()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() failed: %v", err)
	}
	if cfg.DBPath != "/tmp/other.db" || cfg.ModsPath != "/srv/mods" || cfg.Log.Level != "debug" {
		t.Errorf("flags not applied: db=%s mods=%s level=%s", cfg.DBPath, cfg.ModsPath, cfg.Log.Level)
	}
	if cfg.CurseForge.BaseURL != e.api.URL {
		t.Errorf("file value lost: base_url=%s", cfg.CurseForge.BaseURL)
	}
}

func TestInvalidLogLevel(t *testing.T) {
	e := newTestEnv(t)
	if _, err := e.run(t, "list", "--log-level", "loud"); err == nil {
		t.Error("expected an error for an invalid log level")
	}
}

func TestDefaultStateFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	pid, err := getDefaultPIDFile()
	if err != nil {
		t.Fatalf("getDefaultPIDFile() failed: %v", err)
	}
	if want := filepath.Join(dir, "modsync", "serve.pid"); pid != want {
		t.Errorf("getDefaultPIDFile() = %s, want %s", pid, want)
	}

	logFile, err := getDefaultLogFile()
	if err != nil {
		t.Fatalf("getDefaultLogFile() failed: %v", err)
	}
	if want := filepath.Join(dir, "modsync", "serve.log"); logFile != want {
		t.Errorf("getDefaultLogFile() = %s, want %s", logFile, want)
	}
}
