package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Thread.MaxDepth != 3 {
		t.Errorf("Thread.MaxDepth = %d, want 3", cfg.Thread.MaxDepth)
	}
	if cfg.Upload.ContentTimeout != 3*time.Minute {
		t.Errorf("Upload.ContentTimeout = %v, want 3m", cfg.Upload.ContentTimeout)
	}
	if cfg.Upload.VideoTimeout != 10*time.Minute {
		t.Errorf("Upload.VideoTimeout = %v, want 10m", cfg.Upload.VideoTimeout)
	}
	if cfg.Import.BatchSize != 1000 {
		t.Errorf("Import.BatchSize = %d, want 1000", cfg.Import.BatchSize)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("THREAD_MAX_DEPTH", "5")
	t.Setenv("RESERVED_WORDS", " Campus, ,library ")
	t.Setenv("UPLOAD_VIDEO_TIMEOUT", "20m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Thread.MaxDepth != 5 {
		t.Errorf("Thread.MaxDepth = %d, want 5", cfg.Thread.MaxDepth)
	}
	if got := cfg.Server.ReservedWords; len(got) != 2 || got[0] != "campus" || got[1] != "library" {
		t.Errorf("ReservedWords = %v", got)
	}
	if cfg.Upload.VideoTimeout != 20*time.Minute {
		t.Errorf("VideoTimeout = %v", cfg.Upload.VideoTimeout)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("THREAD_MAX_DEPTH", "0")
	if _, err := Load(); err == nil {
		t.Error("expected error for THREAD_MAX_DEPTH=0")
	}
}

func TestValidate_ImportBatchSize(t *testing.T) {
	t.Setenv("IMPORT_BATCH_SIZE", "-1")
	if _, err := Load(); err == nil {
		t.Error("expected error for IMPORT_BATCH_SIZE=-1")
	}
}
