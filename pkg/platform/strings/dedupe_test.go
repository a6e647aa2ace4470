package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{"nil slice", nil, nil},
		{"empty slice", []string{}, []string{}},
		{"reason codes", []string{" ssn_does_not_match", "watchlist_hit_ofac ", "ssn_does_not_match"}, []string{"ssn_does_not_match", "watchlist_hit_ofac"}},
		{"drops blanks", []string{"fraud@example.com", "", "  "}, []string{"fraud@example.com"}},
		{"keeps case", []string{"Foo", "foo"}, []string{"Foo", "foo"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DedupeAndTrim(tt.input))
		})
	}
}
