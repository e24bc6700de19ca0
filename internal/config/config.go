// Package config resolves the environment the build tools run in: build
// type, output directory layout and the paths of external SDK tools.
//
// Values come from the process environment, optionally seeded from a .env
// file in the working directory. Command-line flags override them.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

const (
	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// Env is the resolved tool environment.
type Env struct {
	// BuildType is "Debug" or "Release" (BUILDTYPE).
	BuildType string
	// SourceRoot is the checkout root (CHECKOUT_SOURCE_ROOT, else cwd).
	SourceRoot string
	// OutDirName is the output directory name below SourceRoot
	// (CHROMIUM_OUT_DIR, else "out").
	OutDirName string
	// ADB is the adb executable (ADB, else "adb" on PATH).
	ADB string
	// Javap is the class disassembler (JAVAP, else "javap" on PATH).
	Javap string
}

// Load reads .env (if present) and the process environment.
func Load() Env {
	_ = godotenv.Load()
	return FromEnviron(os.Getenv)
}

// FromEnviron resolves Env through getenv, applying defaults.
func FromEnviron(getenv func(string) string) Env {
	root := strings.TrimSpace(getenv("CHECKOUT_SOURCE_ROOT"))
	if root == "" {
		root, _ = os.Getwd()
	}
	return Env{
		BuildType:  firstNonEmpty(strings.TrimSpace(getenv("BUILDTYPE")), BuildTypeDebug),
		SourceRoot: root,
		OutDirName: firstNonEmpty(strings.TrimSpace(getenv("CHROMIUM_OUT_DIR")), "out"),
		ADB:        firstNonEmpty(strings.TrimSpace(getenv("ADB")), "adb"),
		Javap:      firstNonEmpty(strings.TrimSpace(getenv("JAVAP")), "javap"),
	}
}

// OutDirectory returns <SourceRoot>/<OutDirName>/<buildType> as an absolute
// path. An empty buildType uses e.BuildType.
func (e Env) OutDirectory(buildType string) string {
	if buildType == "" {
		buildType = e.BuildType
	}
	dir := filepath.Join(e.SourceRoot, e.OutDirName, buildType)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
