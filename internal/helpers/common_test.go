package helpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChecksumFile(t *testing.T) {
	const digest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"bare digest", digest + "\n", digest, false},
		{"sha256sum format", digest + "  app-1.0.0-linux-x64.zip\n", digest, false},
		{"uppercase", "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824", digest, false},
		{"empty", "  \n", "", true},
		{"short", "abc123", "", true},
		{"not hex", "zz" + digest[2:], "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseChecksumFile(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
