package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corvidchess/corvid/internal/tablebase"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "corvid-storage-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(tmpDir) })

	dbDir := filepath.Join(tmpDir, "db")
	cache, err := Open(dbDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestProbeRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	want := tablebase.ProbeResult{Found: true, WDL: tablebase.WDLCursedWin, DTZ: 37}
	if err := cache.StoreProbe(0x1234, want); err != nil {
		t.Fatalf("StoreProbe failed: %v", err)
	}

	got, ok := cache.LoadProbe(0x1234)
	if !ok {
		t.Fatal("expected cache hit")
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}

	if _, ok := cache.LoadProbe(0xdead); ok {
		t.Error("expected miss for unstored hash")
	}
}

func TestCorrectionHistoryRoundTrip(t *testing.T) {
	cache := openTestCache(t)

	snapshot := []byte{1, 2, 3, 4, 5}
	if err := cache.SaveCorrectionHistory(snapshot); err != nil {
		t.Fatalf("SaveCorrectionHistory failed: %v", err)
	}

	got, ok := cache.LoadCorrectionHistory()
	if !ok {
		t.Fatal("expected a saved snapshot")
	}
	if string(got) != string(snapshot) {
		t.Errorf("got %v, want %v", got, snapshot)
	}
}

func TestNilCacheIsNoop(t *testing.T) {
	var cache *Cache
	if err := cache.StoreProbe(1, tablebase.ProbeResult{}); err != nil {
		t.Errorf("StoreProbe on nil cache should be a no-op, got %v", err)
	}
	if _, ok := cache.LoadProbe(1); ok {
		t.Error("LoadProbe on nil cache should miss")
	}
	if err := cache.Close(); err != nil {
		t.Errorf("Close on nil cache should be a no-op, got %v", err)
	}
}

func TestDataPaths(t *testing.T) {
	dataDir, err := GetDataDir()
	if err != nil {
		t.Fatalf("GetDataDir failed: %v", err)
	}
	if dataDir == "" {
		t.Error("GetDataDir returned empty path")
	}
	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		t.Errorf("data directory was not created: %s", dataDir)
	}
}
