package spell

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestApply(t *testing.T) {
	tests := []struct {
		name      string
		original  string
		corrected string
		want      string
	}{
		{"quoted segment untouched", `foo "bar baz" qux`, "fox bar baz quux", `fox "bar baz" quux`},
		{"collation keeps quotes", `foo "bar baz" qux`, `fox "bar baz" quux`, `fox "bar baz" quux`},
		{"all plain", "Herzg August Bibliotek", "Herzog August Bibliothek", "Herzog August Bibliothek"},
		{"wildcard phrase untouched", `"wolf*" bibliotek`, `"wolf*" bibliothek`, `"wolf*" bibliothek`},
		{"short collation keeps tail", "alpha beta gamma", "alfa", "alfa beta gamma"},
		{"longer collation appends", "Herzog August Bibliothek", "Herzog August Bibliothek Wolfenbüttel", "Herzog August Bibliothek Wolfenbüttel"},
		{"empty original", "", "anything", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Apply(tt.original, tt.corrected))
		})
	}
}
