package main

import (
	"context"
	"os"
	"testing"

	"github.com/gerard-labs/subtranscript-rag/internal/config"
)

func TestVersion(t *testing.T) {
	if Version == "" {
		t.Error("Version must not be empty")
	}
}

func TestBuildCoordinator_MissingDenseIndexFailsFast(t *testing.T) {
	t.Setenv("GOOGLE_CLOUD_PROJECT", "test-project")
	t.Setenv("DENSE_INDEX_PATH", os.TempDir()+"/does-not-exist-dense")
	t.Setenv("SPARSE_INDEX_PATH", os.TempDir()+"/does-not-exist-sparse")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error: %v", err)
	}

	_, _, _, _, err = buildCoordinator(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected an error when the dense index artifact is missing")
	}
}

func TestRun_MissingProjectFailsFast(t *testing.T) {
	os.Unsetenv("GOOGLE_CLOUD_PROJECT")

	if err := run(); err == nil {
		t.Fatal("expected run() to fail without GOOGLE_CLOUD_PROJECT set")
	}
}
