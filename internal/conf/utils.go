// conf/utils.go various util functions for configuration package
package conf

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/sleeplessdev/voicedetect-go/internal/errors"
)

// configDirs returns the directories searched for config.yaml, in priority
// order for the current operating system.
func configDirs() ([]string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategorySystem).
			Context("operation", "get-home-directory").
			Build()
	}

	if runtime.GOOS == "windows" {
		exePath, err := os.Executable()
		if err != nil {
			return nil, errors.New(err).
				Category(errors.CategorySystem).
				Context("operation", "get-executable-path").
				Build()
		}
		return []string{
			filepath.Dir(exePath),
			filepath.Join(homeDir, "AppData", "Roaming", "voicedetect-go"),
		}, nil
	}

	return []string{
		filepath.Join(homeDir, ".config", "voicedetect-go"),
		"/etc/voicedetect-go",
	}, nil
}

// GetDefaultConfigPaths returns the config search paths. When one of them
// already holds a config.yaml it is returned alone, so a user config always
// wins over the system-wide one.
func GetDefaultConfigPaths() ([]string, error) {
	dirs, err := configDirs()
	if err != nil {
		return nil, err
	}

	for _, dir := range dirs {
		if _, err := os.Stat(filepath.Join(dir, "config.yaml")); err == nil {
			return []string{dir}, nil
		}
	}
	return dirs, nil
}

// FindConfigFile returns the path of the active config.yaml.
func FindConfigFile() (string, error) {
	dirs, err := GetDefaultConfigPaths()
	if err != nil {
		return "", errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "find-config-paths").
			Build()
	}

	for _, dir := range dirs {
		candidate := filepath.Join(dir, "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}

	return "", errors.Newf("config file not found").
		Category(errors.CategoryFileIO).
		Context("operation", "find-config-file").
		Build()
}

// GetBasePath expands environment variables in a configured path and makes
// sure the directory exists. Used for the paths operators point at things
// with, like the preprocessed clip export directory.
func GetBasePath(path string) string {
	basePath := filepath.Clean(os.ExpandEnv(path))

	if _, err := os.Stat(basePath); os.IsNotExist(err) {
		if err := os.MkdirAll(basePath, 0o750); err != nil {
			GetLogger().Error("failed to create directory", "path", basePath, "error", err)
		}
	}
	return basePath
}

// containerMarkers are files whose presence identifies a container runtime.
var containerMarkers = []string{
	"/.dockerenv",        // Docker
	"/run/.containerenv", // Podman
}

// RunningInContainer reports whether the process runs inside a container.
// The result feeds telemetry platform tags only, so false negatives are
// acceptable.
func RunningInContainer() bool {
	for _, marker := range containerMarkers {
		if _, err := os.Stat(marker); err == nil {
			return true
		}
	}

	if value, ok := os.LookupEnv("container"); ok && value != "" {
		return true
	}

	// systemd and LXC leave no marker file; the cgroup path still names
	// the runtime on cgroup v1 hosts.
	file, err := os.Open("/proc/self/cgroup")
	if err != nil {
		return false
	}
	defer func() {
		if err := file.Close(); err != nil {
			GetLogger().Warn("failed to close /proc/self/cgroup", "error", err)
		}
	}()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "docker") || strings.Contains(line, "podman") {
			return true
		}
	}
	return false
}

// moveFile renames src onto dst, falling back to copy-and-delete when the
// two live on different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	srcFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("error opening source file: %w", err)
	}
	defer func() {
		if err := srcFile.Close(); err != nil {
			GetLogger().Warn("failed to close source file", "error", err)
		}
	}()

	dstFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating destination file: %w", err)
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return fmt.Errorf("error copying file contents: %w", err)
	}
	// Close errors matter here: the copy is not durable until the write
	// is flushed.
	if err := dstFile.Close(); err != nil {
		return fmt.Errorf("error closing destination file: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("error removing source file after copy: %w", err)
	}
	return nil
}
