package internal

import (
	"log"
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup, env prefixes and log file names
	DefaultAppName        = "volsearch"
	DefaultAppCMDShortCut = "vs"
	DefaultEnvPrefix      = "VOLSEARCH"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultLogFile        = filepath.Join(DefaultConfigPath, DefaultAppName+".log")

	// Default bulk enumeration settings
	DefaultBufferSize    = 1 << 20
	DefaultMaxBufferSize = 16 << 20
	DefaultPipelineDepth = 8
	DefaultBatchSize     = 4096

	// Default resolver settings
	DefaultMaxPathDepth  = 4096
	DefaultResolverCache = 1 << 16

	// Default search settings
	DefaultMaxResults = 500
)

// DefaultWorkers returns the traversal worker count: CPU cores * 2 for I/O bound
// listing, clamped to [4, 32].
func DefaultWorkers() int {
	return min(max(runtime.NumCPU()*2, 4), 32)
}

// DefaultRoots returns the fallback roots used when no volume list is configured.
func DefaultRoots() []string {
	if runtime.GOOS == "windows" {
		return nil
	}
	return []string{"/"}
}

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using temp dir: %v", err)
			return os.TempDir()
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
