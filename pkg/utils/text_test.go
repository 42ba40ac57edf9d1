package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello world", 5, "hello..."},
		{"x", 0, "x"},
		{"Wolfenbüttel", 9, "Wolfenbüt..."},
		{"Wolfenbüttel", 12, "Wolfenbüttel"},
		{"", 3, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.maxLen), "Truncate(%q, %d)", tt.in, tt.maxLen)
	}
}

func TestCollapseSpace(t *testing.T) {
	assert.Equal(t, "Cod. Guelf. 1", CollapseSpace("  Cod.\n Guelf.\t 1 "))
}
