package e2e

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/cucumber/godog"
)

// binaryPath holds the path to the compiled binary (set once in TestMain)
var binaryPath string

// testContext holds state for a single scenario
type testContext struct {
	tmpDir   string
	exitCode int
	stdout   string
	output   string
}

// buildBinary compiles the dvhgrab binary once
func buildBinary() (string, error) {
	tmpFile, err := os.CreateTemp("", "dvhgrab-test-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpFile.Close()

	// Get the directory of this test file to find the project root
	_, thisFile, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(thisFile), "..", "..", "..")

	cmd := exec.Command("go", "build", "-o", tmpFile.Name(), "./cmd/dvhgrab")
	cmd.Dir = projectRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("build failed: %w\n%s", err, stderr.String())
	}

	return tmpFile.Name(), nil
}

// TestMain compiles the binary once before running all tests
func TestMain(m *testing.M) {
	var err error
	binaryPath, err = buildBinary()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to build binary: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(binaryPath)
	os.Exit(code)
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			TestingT: t,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := &testContext{}

	// Setup: create temp directory before each scenario
	sc.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tmpDir, err := os.MkdirTemp("", "dvhgrab-e2e-*")
		if err != nil {
			return ctx, err
		}
		tc.tmpDir = tmpDir
		return ctx, nil
	})

	// Teardown: cleanup temp directory after each scenario
	sc.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if tc.tmpDir != "" {
			os.RemoveAll(tc.tmpDir)
		}
		return ctx, nil
	})

	// Step definitions
	sc.Step(`^dvhgrab is built$`, tc.dvhgrabIsBuilt)
	sc.Step(`^a "([^"]*)" phantom archive "([^"]*)"$`, tc.aPhantomArchive)
	sc.Step(`^an analysis config "([^"]*)" with:$`, tc.anAnalysisConfigWith)
	sc.Step(`^a file "([^"]*)" with:$`, tc.aFileWith)
	sc.Step(`^I run dvhgrab with "([^"]*)"$`, tc.iRunDvhgrabWith)
	sc.Step(`^the exit code should be (\d+)$`, tc.theExitCodeShouldBe)
	sc.Step(`^the output should contain "([^"]*)"$`, tc.theOutputShouldContain)
	sc.Step(`^the output should not contain "([^"]*)"$`, tc.theOutputShouldNotContain)
	sc.Step(`^stdout should be:$`, tc.stdoutShouldBe)
	sc.Step(`^"([^"]*)" should exist$`, tc.shouldExist)
	sc.Step(`^"([^"]*)" should be a PNG image$`, tc.shouldBePNG)
}

func (tc *testContext) expand(s string) string {
	return strings.ReplaceAll(s, "{tmpdir}", tc.tmpDir)
}

func (tc *testContext) dvhgrabIsBuilt() error {
	if binaryPath == "" {
		return fmt.Errorf("binary not built")
	}
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		return fmt.Errorf("binary does not exist at %s", binaryPath)
	}
	return nil
}

func (tc *testContext) aPhantomArchive(preset, path string) error {
	if err := tc.iRunDvhgrabWith(fmt.Sprintf("phantom --preset %s --output %s", preset, path)); err != nil {
		return err
	}
	if tc.exitCode != 0 {
		return fmt.Errorf("phantom generation failed:\n%s", tc.output)
	}
	return nil
}

func (tc *testContext) anAnalysisConfigWith(name string, content *godog.DocString) error {
	return tc.aFileWith(filepath.Join("{tmpdir}", "configs", name+".txt"), content)
}

func (tc *testContext) aFileWith(path string, content *godog.DocString) error {
	path = tc.expand(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(tc.expand(content.Content)+"\n"), 0644)
}

func (tc *testContext) iRunDvhgrabWith(args string) error {
	argList := splitArgs(tc.expand(args))

	cmd := exec.Command(binaryPath, argList...)
	cmd.Dir = tc.tmpDir
	var stdout, output bytes.Buffer
	cmd.Stdout = &tee{&stdout, &output}
	cmd.Stderr = &output

	err := cmd.Run()
	tc.stdout = stdout.String()
	tc.output = output.String()

	if exitErr, ok := err.(*exec.ExitError); ok {
		tc.exitCode = exitErr.ExitCode()
	} else if err != nil {
		return fmt.Errorf("failed to run command: %w", err)
	} else {
		tc.exitCode = 0
	}

	return nil
}

func (tc *testContext) theExitCodeShouldBe(expected int) error {
	if tc.exitCode != expected {
		return fmt.Errorf("expected exit code %d, got %d\nOutput:\n%s", expected, tc.exitCode, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldContain(expected string) error {
	if !strings.Contains(tc.output, expected) {
		return fmt.Errorf("output does not contain %q\nOutput:\n%s", expected, tc.output)
	}
	return nil
}

func (tc *testContext) theOutputShouldNotContain(unexpected string) error {
	if strings.Contains(tc.output, unexpected) {
		return fmt.Errorf("output contains %q\nOutput:\n%s", unexpected, tc.output)
	}
	return nil
}

func (tc *testContext) stdoutShouldBe(expected *godog.DocString) error {
	got := strings.TrimRight(tc.stdout, "\n")
	if got != expected.Content {
		return fmt.Errorf("stdout mismatch\nExpected:\n%s\nGot:\n%s", expected.Content, got)
	}
	return nil
}

func (tc *testContext) shouldExist(path string) error {
	path = tc.expand(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return fmt.Errorf("path does not exist: %s", path)
	}
	return nil
}

func (tc *testContext) shouldBePNG(path string) error {
	data, err := os.ReadFile(tc.expand(path))
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")) {
		return fmt.Errorf("%s is not a PNG image", path)
	}
	return nil
}

// tee writes to both buffers
type tee struct {
	a, b *bytes.Buffer
}

func (t *tee) Write(p []byte) (int, error) {
	t.a.Write(p)
	return t.b.Write(p)
}

// splitArgs splits a command line string into arguments
func splitArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false

	for _, r := range s {
		switch {
		case r == '\'':
			inQuote = !inQuote
		case r == ' ' && !inQuote:
			if current.Len() > 0 {
				args = append(args, current.String())
				current.Reset()
			}
		default:
			current.WriteRune(r)
		}
	}
	if current.Len() > 0 {
		args = append(args, current.String())
	}
	return args
}
