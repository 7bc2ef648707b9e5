package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateExtractPath(t *testing.T) {
	dest := t.TempDir()

	tests := []struct {
		name    string
		entry   string
		wantErr bool
	}{
		{"plain file", "start.sh", false},
		{"nested", "lib/runtime/app.dll", false},
		{"dot prefix", "./config.json", false},
		{"dots inside a name", "wwwroot/app..min.js", false},
		{"inner parent stays inside", "lib/../start.sh", false},
		{"parent escape", "../evil", true},
		{"nested escape", "lib/../../evil", true},
		{"absolute", "/etc/passwd", true},
		{"nul byte", "start\x00.sh", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateExtractPath(dest, tt.entry)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsafePath)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateSymlink(t *testing.T) {
	dest := t.TempDir()
	link := filepath.Join(dest, "bin", "webservice")

	assert.NoError(t, ValidateSymlink(dest, link, "../lib/webservice"))
	assert.NoError(t, ValidateSymlink(dest, link, "webservice.real"))
	assert.ErrorIs(t, ValidateSymlink(dest, link, "../../outside"), ErrUnsafePath)
	assert.ErrorIs(t, ValidateSymlink(dest, link, "/usr/bin/env"), ErrUnsafePath)
}
