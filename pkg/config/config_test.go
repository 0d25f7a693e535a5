package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Spreadsheet != DefaultSpreadsheet {
		t.Errorf("Spreadsheet = %q, want %q", cfg.Spreadsheet, DefaultSpreadsheet)
	}
	if cfg.Backend != "sheets" || cfg.MaxRows != 1000 || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if cfg.Mail.Transport != "gmail" || cfg.Mail.SMTPPort != 587 || cfg.Mail.ClearAfterSend {
		t.Errorf("unexpected mail defaults: %+v", cfg.Mail)
	}
	if cfg.Recipients == nil {
		t.Error("Recipients should be non-nil")
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	in := &Config{
		Spreadsheet: "Team Tasks",
		Backend:     "sqlite",
		SQLitePath:  "/tmp/ledger.db",
		Timeout:     10 * time.Second,
		MaxRows:     500,
		Listen:      ":9000",
		Mail:        Mail{Transport: "smtp", From: "bot@example.com", SMTPHost: "mail.example.com", SMTPPort: 2525},
		Recipients:  map[string]string{"Kim": "kim@example.com"},
	}
	if err := SaveFile(path, in); err != nil {
		t.Fatalf("SaveFile() failed: %v", err)
	}

	out, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if out.Spreadsheet != "Team Tasks" || out.Backend != "sqlite" || out.MaxRows != 500 {
		t.Errorf("round trip mismatch: %+v", out)
	}
	if out.Timeout != 10*time.Second {
		t.Errorf("Timeout = %v, want 10s", out.Timeout)
	}
	if out.Mail.SMTPHost != "mail.example.com" || out.Mail.SMTPPort != 2525 {
		t.Errorf("mail mismatch: %+v", out.Mail)
	}
	if out.Recipients["kim"] != "kim@example.com" && out.Recipients["Kim"] != "kim@example.com" {
		t.Errorf("recipients mismatch: %+v", out.Recipients)
	}
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("TASKSHEET_BACKEND", "sqlite")
	t.Setenv("TASKSHEET_MAIL_FROM", "ops@example.com")
	t.Setenv("TASKSHEET_TIMEOUT", "5s")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFile() failed: %v", err)
	}
	if cfg.Backend != "sqlite" {
		t.Errorf("Backend = %q, want sqlite", cfg.Backend)
	}
	if cfg.Mail.From != "ops@example.com" {
		t.Errorf("Mail.From = %q", cfg.Mail.From)
	}
	if cfg.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v, want 5s", cfg.Timeout)
	}
}
