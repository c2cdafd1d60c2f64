package trust

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshtein(t *testing.T) {
	cases := []struct {
		a        string
		b        string
		expected int
	}{
		{"", "", 0},
		{"requests", "requests", 0},
		{"", "abc", 3},
		{"abc", "", 3},
		{"reqeusts", "requests", 1},
		{"lodsah", "lodash", 1},
		{"request", "requests", 1},
		{"requestz", "requests", 1},
		{"lodash", "lodasch", 1},
		{"kitten", "sitting", 3},
		{"flask", "numpy", 5},
	}

	for _, c := range cases {
		t.Run(c.a+"_"+c.b, func(t *testing.T) {
			assert.Equal(t, c.expected, Levenshtein(c.a, c.b))
			assert.Equal(t, c.expected, Levenshtein(c.b, c.a))
		})
	}
}
