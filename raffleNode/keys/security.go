package keys

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

const (
	keyDirPerms  os.FileMode = 0o700
	keyFilePerms os.FileMode = 0o600
)

// ValidateKeyDirectory creates dir with 0700 or tightens an existing one.
func ValidateKeyDirectory(dir string, log zerolog.Logger) error {
	if dir == "" {
		return fmt.Errorf("key directory is empty")
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(dir, keyDirPerms); err != nil {
				return fmt.Errorf("failed to create key directory: %w", err)
			}
			log.Info().Str("path", dir).Msg("created key directory with secure permissions")
			return nil
		}
		return fmt.Errorf("failed to check key directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("key path is not a directory: %s", dir)
	}

	if info.Mode().Perm() != keyDirPerms {
		log.Warn().
			Str("path", dir).
			Str("current_perms", info.Mode().Perm().String()).
			Msg("key directory permissions are not optimal (should be 700)")
		if err := os.Chmod(dir, keyDirPerms); err != nil {
			return fmt.Errorf("failed to set secure permissions on key directory: %w", err)
		}
	}
	return nil
}

// ValidateKeyFile refuses key files readable by group or others.
func ValidateKeyFile(path string) error {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to stat key file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("key file is a directory: %s", path)
	}
	if info.Mode().Perm()&0o077 != 0 {
		return fmt.Errorf("key file %s has permissions %s, expected %s or stricter",
			path, info.Mode().Perm(), keyFilePerms)
	}
	return nil
}
