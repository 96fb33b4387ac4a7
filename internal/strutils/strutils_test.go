package strutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStrListContains(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	audiences := []string{"web-client", "cli-client", "api"}
	assert.True(StrListContains(audiences, "api"))
	assert.False(StrListContains(audiences, "API"))
	assert.False(StrListContains(audiences, "mobile-client"))
	assert.False(StrListContains(nil, "api"))
}

func TestRemoveDuplicatesStable(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		input           []string
		caseInsensitive bool
		want            []string
	}{
		{
			name:  "empty",
			input: []string{},
			want:  []string{},
		},
		{
			name:  "scopes-with-duplicate-openid",
			input: []string{"openid", "profile", "openid", "email"},
			want:  []string{"openid", "profile", "email"},
		},
		{
			name:  "case-sensitive-keeps-both",
			input: []string{"Profile", "profile"},
			want:  []string{"Profile", "profile"},
		},
		{
			name:            "case-insensitive-keeps-first",
			input:           []string{"Profile", "profile"},
			caseInsensitive: true,
			want:            []string{"Profile"},
		},
		{
			name:  "blank-entries-dropped",
			input: []string{" ", "openid", "", "openid"},
			want:  []string{"openid"},
		},
		{
			name:  "whitespace-trimmed-for-comparison-only",
			input: []string{"openid ", " openid", "email"},
			want:  []string{"openid ", "email"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RemoveDuplicatesStable(tt.input, tt.caseInsensitive))
		})
	}
}
