package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadTrustedPackages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trusted.yaml")
	content := `packages:
  - name: internal-corp-lib
    ecosystem: python
    note: built in-house
  - name: "@corp/ui-kit"
    ecosystem: javascript
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	packages, err := LoadTrustedPackages(path)
	require.NoError(t, err)
	require.Len(t, packages, 2)
	assert.Equal(t, TrustedPackage{Name: "internal-corp-lib", Ecosystem: "python", Note: "built in-house"}, packages[0])
	assert.Equal(t, TrustedPackage{Name: "@corp/ui-kit", Ecosystem: "javascript"}, packages[1])
}

func TestLoadTrustedPackagesMissingFile(t *testing.T) {
	_, err := LoadTrustedPackages(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
