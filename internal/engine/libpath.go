package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// sharedLib describes one native library the april backend loads.
type sharedLib struct {
	name   string // short name used in errors
	envVar string // explicit path override
	file   func(goos string) string
}

var (
	aprilLib = sharedLib{name: "april", envVar: "NUPI_APRIL_LIB_PATH", file: aprilLibFilename}
	ortLib   = sharedLib{name: "ort", envVar: "NUPI_ORT_LIB_PATH", file: ortLibFilename}
)

// resolve returns the path to the shared library.
// Search order:
//  1. the library's environment variable (explicit override)
//  2. lib/<goos>-<goarch>/ relative to executable
//  3. ../lib/<goos>-<goarch>/ relative to executable (bin/ layout)
//  4. lib/<goos>-<goarch>/ relative to CWD (only if NUPI_DEV_MODE=1)
//  5. ../lib/<goos>-<goarch>/ relative to CWD (only if NUPI_DEV_MODE=1)
//
// CWD-based lookup is disabled by default to prevent shared library hijacking.
func (l sharedLib) resolve() (string, error) {
	if envPath := os.Getenv(l.envVar); envPath != "" {
		info, err := os.Stat(envPath)
		if err != nil {
			return "", fmt.Errorf("%s: %s=%q does not exist", l.name, l.envVar, envPath)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s: %s=%q is a directory, expected a file", l.name, l.envVar, envPath)
		}
		return envPath, nil
	}

	filename := l.file(runtime.GOOS)
	libRel := filepath.Join("lib", runtime.GOOS+"-"+runtime.GOARCH, filename)
	libRelParent := filepath.Join("..", "lib", runtime.GOOS+"-"+runtime.GOARCH, filename)

	if exePath, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exePath)
		for _, rel := range []string{libRel, libRelParent} {
			path := filepath.Join(exeDir, rel)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	if os.Getenv("NUPI_DEV_MODE") == "1" {
		if dir, err := os.Getwd(); err == nil {
			for _, rel := range []string{libRel, libRelParent} {
				path := filepath.Join(dir, rel)
				if _, err := os.Stat(path); err == nil {
					return path, nil
				}
			}
		}
	}

	return "", fmt.Errorf("%s: shared library not found; searched lib/<os>-<arch>/%s relative to executable (set %s to override, or NUPI_DEV_MODE=1 to enable CWD lookup)", l.name, filename, l.envVar)
}

func ortLibFilename(goos string) string {
	switch goos {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

func aprilLibFilename(goos string) string {
	switch goos {
	case "darwin":
		return "libaprilasr.dylib"
	case "windows":
		return "libaprilasr.dll"
	default:
		return "libaprilasr.so"
	}
}
