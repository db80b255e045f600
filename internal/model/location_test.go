package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceLocation_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		loc  SourceLocation
		want bool
	}{
		{"well formed", SourceLocation{Page: 1, X0: 0.1, Y0: 0.1, X1: 0.5, Y1: 0.2}, true},
		{"point citation", SourceLocation{Page: 3, X0: 0.5, Y0: 0.5, X1: 0.5, Y1: 0.5}, true},
		{"full page", SourceLocation{Page: 1, X1: 1, Y1: 1}, true},
		{"page zero", SourceLocation{Page: 0, X1: 0.5, Y1: 0.5}, false},
		{"inverted x", SourceLocation{Page: 1, X0: 0.6, X1: 0.4, Y1: 0.5}, false},
		{"out of range", SourceLocation{Page: 1, X0: -0.1, X1: 0.4, Y1: 0.5}, false},
		{"above one", SourceLocation{Page: 1, X1: 1.2, Y1: 0.5}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.loc.Valid())
		})
	}
}
