package main

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

// E2ETestSpec represents a single end-to-end test case
type E2ETestSpec struct {
	Name         string   `yaml:"name"`
	Input        string   `yaml:"input"`
	NRegs        int      `yaml:"nregs,omitempty"`
	Result       int64    `yaml:"result"`        // Value returned by main
	Output       string   `yaml:"output"`        // Characters written with putChar
	Expect       []string `yaml:"expect"`        // Strings that must appear in the assembly
	ExpectOrder  []string `yaml:"expect_order"`  // Strings that must appear in this order
	ExpectUnique []string `yaml:"expect_unique"` // Strings that must appear exactly once
	ExpectNot    []string `yaml:"expect_not"`    // Strings that must NOT appear
	Skip         string   `yaml:"skip,omitempty"`
}

// E2ETestFile represents the e2e.yaml file structure
type E2ETestFile struct {
	Tests []E2ETestSpec `yaml:"tests"`
}

func loadE2ETests(t *testing.T) []E2ETestSpec {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("testdata", "e2e.yaml"))
	if err != nil {
		t.Fatalf("failed to read e2e.yaml: %v", err)
	}

	var testFile E2ETestFile
	if err := yaml.Unmarshal(data, &testFile); err != nil {
		t.Fatalf("failed to parse e2e.yaml: %v", err)
	}
	return testFile.Tests
}

func writeInput(t *testing.T, input string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(input), 0o644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}
	return path
}

func (tc E2ETestSpec) args(path string, extra ...string) []string {
	args := append([]string{path}, extra...)
	if tc.NRegs != 0 {
		args = append(args, "--nregs", strconv.Itoa(tc.NRegs))
	}
	return args
}

// TestE2ERun runs each program and checks its result and output
func TestE2ERun(t *testing.T) {
	for _, tc := range loadE2ETests(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			out, errOut, err := execute(t, tc.args(writeInput(t, tc.Input), "--run")...)

			var code int64
			var exit *exitError
			switch {
			case errors.As(err, &exit):
				code = exit.code
			case err != nil:
				t.Fatalf("prevc failed: %v\nStderr: %s", err, errOut)
			}

			if code != tc.Result {
				t.Errorf("result = %d, want %d", code, tc.Result)
			}
			if out != tc.Output {
				t.Errorf("output = %q, want %q", out, tc.Output)
			}
		})
	}
}

// TestE2EAssembly checks the generated MMIXAL text
func TestE2EAssembly(t *testing.T) {
	for _, tc := range loadE2ETests(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			asm, errOut, err := execute(t, tc.args(writeInput(t, tc.Input), "-o", "-")...)
			if err != nil {
				t.Fatalf("prevc failed: %v\nStderr: %s", err, errOut)
			}

			for _, exp := range tc.Expect {
				if !strings.Contains(asm, exp) {
					t.Errorf("expected output to contain %q\nGot:\n%s", exp, asm)
				}
			}

			lastIdx := -1
			for _, exp := range tc.ExpectOrder {
				idx := strings.Index(asm[lastIdx+1:], exp)
				if idx == -1 {
					t.Errorf("expected %q after position %d\nGot:\n%s", exp, lastIdx, asm)
					break
				}
				lastIdx += idx + 1
			}

			for _, exp := range tc.ExpectUnique {
				if n := strings.Count(asm, exp); n != 1 {
					t.Errorf("expected %q exactly once, found %d times", exp, n)
				}
			}

			for _, notExp := range tc.ExpectNot {
				if strings.Contains(asm, notExp) {
					t.Errorf("expected output NOT to contain %q\nGot:\n%s", notExp, asm)
				}
			}
		})
	}
}

// findMMIXAL looks for the MMIX assembler
func findMMIXAL() (string, bool) {
	if path := os.Getenv("MMIXAL"); path != "" {
		if _, err := os.Stat(path); err == nil {
			return path, true
		}
	}
	path, err := exec.LookPath("mmixal")
	if err == nil {
		return path, true
	}
	return "", false
}

// TestE2EAssemble feeds the generated files to mmixal when it is installed
func TestE2EAssemble(t *testing.T) {
	mmixal, found := findMMIXAL()
	if !found {
		t.Skip("mmixal not found; set MMIXAL env var or put it in PATH")
	}

	for _, tc := range loadE2ETests(t) {
		t.Run(tc.Name, func(t *testing.T) {
			if tc.Skip != "" {
				t.Skip(tc.Skip)
			}

			path := writeInput(t, tc.Input)
			if _, errOut, err := execute(t, tc.args(path)...); err != nil {
				t.Fatalf("prevc failed: %v\nStderr: %s", err, errOut)
			}

			cmd := exec.Command(mmixal, assemblyOutputFilename(path))
			cmd.Dir = filepath.Dir(path)
			if out, err := cmd.CombinedOutput(); err != nil {
				t.Errorf("mmixal failed: %v\nOutput: %s", err, out)
			}
		})
	}
}
