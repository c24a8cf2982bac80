package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hirevoice/interview/internal/config"
	"hirevoice/interview/internal/handlers"
	"hirevoice/interview/internal/middleware"
	"hirevoice/interview/internal/models"

	"github.com/spf13/viper"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	cmd := newRootCommand()
	for _, name := range []string{"serve", "migrate", "sweep", "token"} {
		found, _, err := cmd.Find([]string{name})
		if err != nil || found.Name() != name {
			t.Fatalf("expected subcommand %s, got %v (%v)", name, found, err)
		}
	}
}

func TestOpenDatabaseSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "interviews.db")
	db, err := openDatabase(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("openDatabase returned error: %v", err)
	}
	defer closeDatabase(db, nil)

	for _, model := range models.AllModels() {
		if !db.Migrator().HasTable(model) {
			t.Fatalf("expected table for %T", model)
		}
	}

	if _, err := openDatabase(config.DatabaseConfig{Driver: "mysql"}); err == nil {
		t.Fatal("expected unsupported driver error")
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(envFile, []byte("PORT=9191\n"), 0o600); err != nil {
		t.Fatalf("failed to write env file: %v", err)
	}
	t.Cleanup(func() { os.Unsetenv("PORT") })

	opts := &rootOptions{envFile: envFile, viper: viper.New()}
	cfg, logger, err := opts.load()
	if err != nil {
		t.Fatalf("load returned error: %v", err)
	}
	defer logger.Sync()
	if cfg.Server.Port != "9191" {
		t.Fatalf("expected port from env file, got %s", cfg.Server.Port)
	}

	missing := &rootOptions{envFile: filepath.Join(t.TempDir(), "absent.env"), viper: viper.New()}
	if _, _, err := missing.load(); err != nil {
		t.Fatalf("a missing env file should be ignored, got %v", err)
	}
}

func TestTokenCommand(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"token", "--env-file", "", "--user", "rec-7"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("token command failed: %v", err)
	}

	viewer, err := middleware.VerifyToken("Bearer "+strings.TrimSpace(out.String()), "cli-secret")
	if err != nil {
		t.Fatalf("issued token did not verify: %v", err)
	}
	if viewer.UserID != "rec-7" || !viewer.IsRecruiter() {
		t.Fatalf("unexpected viewer %+v", viewer)
	}

	cmd = newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"token", "--env-file", "", "--user", "x", "--role", "admin"})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected unknown role to fail")
	}
}

func TestSweepCommand(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "sweep.db"))

	cmd := newRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"sweep", "--env-file", ""})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sweep command failed: %v", err)
	}
	if !strings.Contains(out.String(), "expired sessions: 0") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestNewRouterServesHealthAndUploads(t *testing.T) {
	uploads := t.TempDir()
	if err := os.WriteFile(filepath.Join(uploads, "hello.mp3"), []byte("audio"), 0o600); err != nil {
		t.Fatalf("failed to write upload: %v", err)
	}

	cfg := &config.Config{Auth: config.AuthConfig{JWTSecret: "s"}}
	health := handlers.NewHealthHandler(nil, nil, map[string]handlers.DependencyCheck{
		"database": func(context.Context) error { return nil },
	}, nil)
	router := newRouter(cfg, health,
		handlers.NewInterviewHandler(nil, nil),
		handlers.NewSessionHandler(nil, 0, nil),
		uploads)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /healthz 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/uploads/hello.mp3", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "audio" {
		t.Fatalf("expected upload to be served, got %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected /metrics 200, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/abc", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a bad token, got %d", rec.Code)
	}
}
