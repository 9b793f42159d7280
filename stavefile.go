//go:build stave

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/yaklabco/stave/pkg/sh"
	"github.com/yaklabco/stave/pkg/st"
	"github.com/yaklabco/stave/pkg/target"
)

const binary = "bin/nucleus"

// Default target when running `stave` with no arguments.
var Default = All

// Aliases for common targets.
var Aliases = map[string]interface{}{
	"b": Build,
	"t": Test,
	"l": Lint,
	"c": Clean,
	"s": Eval.Score,
}

// All runs lint and tests, then builds the nucleus binary.
func All() error {
	st.Deps(Init)
	st.Deps(Lint, Test)
	st.Deps(Build)
	return nil
}

// Init ensures the module dependencies are up to date.
func Init() error {
	return sh.Run("go", "mod", "tidy")
}

// Build compiles the nucleus binary with version information.
func Build() error {
	st.Deps(Init)

	rebuild, err := target.Glob(binary, "**/*.go", "go.mod", "go.sum")
	if err != nil {
		return fmt.Errorf("checking rebuild: %w", err)
	}
	if !rebuild {
		if st.Verbose() {
			fmt.Println("nucleus is up to date")
		}
		return nil
	}

	version, _ := sh.Output("git", "describe", "--tags", "--always", "--dirty")
	ldflags := "-X main.version=" + strings.TrimSpace(version)
	return sh.RunV("go", "build", "-ldflags", ldflags, "-o", binary, "./cmd/nucleus")
}

// Test runs all tests with race detection and coverage.
func Test() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-race", "-cover", "./...")
}

// TestShort runs tests in short mode.
func TestShort() error {
	st.Deps(Init)
	return sh.RunV("go", "test", "-short", "-race", "./...")
}

// Lint runs golangci-lint on the codebase.
func Lint() error {
	return sh.RunV("golangci-lint", "run", "./...")
}

// Fmt formats all Go code using gofmt and goimports.
func Fmt() error {
	if err := sh.Run("gofmt", "-w", "."); err != nil {
		return fmt.Errorf("gofmt: %w", err)
	}
	if err := sh.Run("goimports", "-w", "."); err != nil {
		return fmt.Errorf("goimports: %w", err)
	}
	return nil
}

// Vet runs go vet on all packages.
func Vet() error {
	return sh.RunV("go", "vet", "./...")
}

// Clean removes build artifacts and coverage output.
func Clean() error {
	for _, a := range []string{"bin/", "coverage.out", "coverage.html"} {
		if err := sh.Rm(a); err != nil {
			return fmt.Errorf("removing %s: %w", a, err)
		}
	}
	return nil
}

// Install builds and copies the binary to GOBIN.
func Install() error {
	st.Deps(Build)

	gocmd := st.GoCmd()
	bin, err := sh.Output(gocmd, "env", "GOBIN")
	if err != nil {
		return fmt.Errorf("determining GOBIN: %w", err)
	}
	if bin == "" {
		gopath, err := sh.Output(gocmd, "env", "GOPATH")
		if err != nil {
			return fmt.Errorf("determining GOPATH: %w", err)
		}
		bin = filepath.Join(gopath, "bin")
	}

	dst := filepath.Join(bin, "nucleus")
	if runtime.GOOS == "windows" {
		dst += ".exe"
	}
	if err := sh.Copy(dst, binary); err != nil {
		return fmt.Errorf("installing nucleus: %w", err)
	}
	if st.Verbose() {
		fmt.Printf("Installed nucleus to %s\n", dst)
	}
	return nil
}

// Eval namespace for running the model and scoring against stage-1 data.
type Eval st.Namespace

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Predict writes a submission and prediction archive for $NUCLEUS_DATA.
func (Eval) Predict() error {
	st.Deps(Build)
	return sh.RunV(binary, "predict",
		"--data-dir", env("NUCLEUS_DATA", "testdata/stage1_test"),
		"--checkpoint-dir", env("NUCLEUS_CHECKPOINTS", "models"),
		"--result-dir", "result",
		"--archive", "result/predictions.pb",
	)
}

// Score scores the archive from Eval.Predict against $NUCLEUS_TRUTH.
func (Eval) Score() error {
	st.Deps(Build)
	return sh.RunV(binary, "score",
		"--truth", env("NUCLEUS_TRUTH", "testdata/stage1_train"),
		"--pred-archive", "result/predictions.pb",
		"--sweep",
		"--worst", "10",
	)
}

// Check verifies the RLE round trip on every ground-truth mask.
func (Eval) Check() error {
	st.Deps(Build)
	return sh.RunV(binary, "rle", "--check", "--data-dir", env("NUCLEUS_TRUTH", "testdata/stage1_train"))
}

// CI runs the full CI pipeline (lint, test, build).
func CI() error {
	st.Deps(Init)
	st.SerialDeps(Lint, Test, Build)
	return nil
}

// Check runs quick validation (vet, lint, short tests).
func Check() error {
	st.Deps(Vet, Lint, TestShort)
	return nil
}

// Coverage generates a coverage report.
func Coverage() error {
	st.Deps(Init)
	if err := sh.RunV("go", "test", "-race", "-coverprofile=coverage.out", "./..."); err != nil {
		return err
	}
	return sh.RunV("go", "tool", "cover", "-html=coverage.out", "-o", "coverage.html")
}

// Tidy runs go mod tidy and verifies the go.sum is clean.
func Tidy() error {
	if err := sh.Run("go", "mod", "tidy"); err != nil {
		return err
	}
	output, err := sh.Output("git", "diff", "--exit-code", "go.sum")
	if err != nil && output != "" {
		return fmt.Errorf("go.sum is not clean:\n%s", output)
	}
	return nil
}
