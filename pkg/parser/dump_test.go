package parser

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"kotlite/pkg/source"
)

func TestDumpAST(t *testing.T) {
	script := parseScript(t, "val answer = 40 + 2")
	var buf bytes.Buffer
	DumpAST(&buf, script)
	out := buf.String()
	assert.Contains(t, out, "PropertyDeclarationNode")
	assert.Contains(t, out, "BinaryOpNode")
	assert.Contains(t, out, `"answer"`)
}

func TestIsIncomplete(t *testing.T) {
	tests := []struct {
		input      string
		incomplete bool
	}{
		{"fun f() {", true},
		{"listOf(1, 2,", true},
		{"val x = ", true},
		{"/* comment", true},
		{`"${1 + `, true},
		{"val x = )", false},
		{"1 + 2", false},
	}
	for _, tt := range tests {
		_, err := ParseSource(source.NewReplSource(tt.input))
		if tt.incomplete {
			assert.True(t, IsIncomplete(err), "%q: %v", tt.input, err)
		} else {
			assert.False(t, IsIncomplete(err), "%q: %v", tt.input, err)
		}
	}
}
