package driver

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Expectation is the expected outcome of a script fixture.
type Expectation struct {
	ResultType string // "value", "runtime_error", "compile_error"
	Value      string // Expected value or error message substring
}

var expectRegex = regexp.MustCompile(`^//\s*(expect(?:_runtime_error|_compile_error)?):\s*(.*)`)

// parseExpectation extracts the expectation from the script's comments:
//
//	// expect: value
//	// expect_runtime_error: message
//	// expect_compile_error: message
func parseExpectation(script string) (*Expectation, error) {
	scanner := bufio.NewScanner(strings.NewReader(script))
	for scanner.Scan() {
		matches := expectRegex.FindStringSubmatch(scanner.Text())
		if len(matches) != 3 {
			continue
		}
		value := strings.TrimSpace(matches[2])
		switch matches[1] {
		case "expect":
			return &Expectation{ResultType: "value", Value: value}, nil
		case "expect_runtime_error":
			return &Expectation{ResultType: "runtime_error", Value: value}, nil
		case "expect_compile_error":
			return &Expectation{ResultType: "compile_error", Value: value}, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading script content: %w", err)
	}
	return nil, fmt.Errorf("no expectation comment found (e.g., // expect: value)")
}

func TestScripts(t *testing.T) {
	scriptDir := filepath.Join("testdata", "scripts")
	files, err := os.ReadDir(scriptDir)
	require.NoError(t, err)

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".kt") {
			continue
		}
		scriptPath := filepath.Join(scriptDir, file.Name())
		t.Run(file.Name(), func(t *testing.T) {
			content, err := os.ReadFile(scriptPath)
			require.NoError(t, err)
			expectation, err := parseExpectation(string(content))
			require.NoError(t, err)

			var out bytes.Buffer
			env, err := NewEnvironment(Options{Stdout: &out})
			require.NoError(t, err)

			script, compileErr := env.Compile(file.Name(), string(content))
			if expectation.ResultType == "compile_error" {
				require.Error(t, compileErr, "expected compile error containing %q", expectation.Value)
				require.Contains(t, compileErr.Error(), expectation.Value)
				return
			}
			require.NoError(t, compileErr, "unexpected compile error")
			require.NotNil(t, script)

			res, runErr := env.Run(file.Name(), string(content))
			switch expectation.ResultType {
			case "value":
				require.NoError(t, runErr, "output so far:\n%s", out.String())
				require.Equal(t, expectation.Value, res.Display)
			case "runtime_error":
				require.Error(t, runErr, "expected runtime error containing %q", expectation.Value)
				require.Contains(t, runErr.Error(), expectation.Value)
			}
		})
	}
}
