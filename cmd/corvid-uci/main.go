// Command corvid-uci runs the engine as a UCI text-protocol process.
package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/pprof"

	"github.com/corvidchess/corvid/internal/engine"
	"github.com/corvidchess/corvid/internal/storage"
	"github.com/corvidchess/corvid/internal/uci"
)

// Default NNUE file names (Stockfish compatible)
const (
	defaultBigNet   = "nn-c288c895ea92.nnue" // ~108MB
	defaultSmallNet = "nn-37f18f62d772.nnue" // ~3.5MB
)

var cpuprofile = flag.String("cpuprofile", "", "write cpu profile to file")

func main() {
	flag.Parse()

	// UCI requires stdout to carry only protocol lines; diagnostics go to stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	profilePath := *cpuprofile
	if profilePath == "" {
		profilePath = os.Getenv("CPUPROFILE")
	}
	if profilePath != "" {
		f, err := os.Create(profilePath)
		if err != nil {
			slog.Error("could not create CPU profile", "error", err)
			os.Exit(1)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			slog.Error("could not start CPU profile", "error", err)
			os.Exit(1)
		}
		defer pprof.StopCPUProfile()
		slog.Info("CPU profiling enabled", "path", profilePath)
	}

	cache, err := storage.OpenDefault()
	if err != nil {
		slog.Warn("persistent cache unavailable, continuing without it", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// Create engine with 64MB hash table. Multi-threaded search enabled (Lazy SMP).
	eng := engine.NewEngine(64)
	eng.SetPersistentCache(cache)

	// Auto-load NNUE from default locations
	if err := autoLoadNNUE(eng); err != nil {
		slog.Warn("NNUE not loaded, using classical evaluation", "error", err)
	}

	// Create and run UCI protocol handler
	protocol := uci.New(eng)
	protocol.Run()
}

// autoLoadNNUE attempts to load NNUE weights from standard locations
func autoLoadNNUE(eng *engine.Engine) error {
	// Try multiple locations in order of preference
	searchPaths := []string{
		getAppSupportDir(),
		filepath.Join(getHomeDir(), ".corvid", "nnue"),
		"./nnue",
		".",
	}

	for _, dir := range searchPaths {
		bigPath := filepath.Join(dir, defaultBigNet)
		smallPath := filepath.Join(dir, defaultSmallNet)

		// Check if both files exist
		if fileExists(bigPath) && fileExists(smallPath) {
			if err := eng.LoadNNUE(bigPath, smallPath); err != nil {
				slog.Warn("failed to load NNUE", "dir", dir, "error", err)
				continue
			}
			eng.SetUseNNUE(true)
			slog.Info("NNUE loaded", "dir", dir)
			return nil
		}
	}

	return os.ErrNotExist
}

// getAppSupportDir returns the application support directory for corvid.
func getAppSupportDir() string {
	home := getHomeDir()
	return filepath.Join(home, "Library", "Application Support", "corvid", "nnue")
}

// getHomeDir returns the user's home directory.
func getHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}

// fileExists checks if a file exists.
func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
