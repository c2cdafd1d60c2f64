package extractor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depsentry/depsentry/models"
)

func TestParseRequirements(t *testing.T) {
	content := `# production dependencies
requests==2.31.0
flask>=2.0  # web framework

-r dev-requirements.txt
--index-url https://example.com/simple
./local-package
https://example.com/pkg.tar.gz
numpy
`

	refs, err := ParseRequirements(strings.NewReader(content))
	require.NoError(t, err)

	assert.Equal(t, []models.PackageReference{
		{Name: "requests", Version: "2.31.0", Ecosystem: models.EcosystemPython},
		{Name: "flask", Version: "2.0.0", Ecosystem: models.EcosystemPython},
		{Name: "numpy", Ecosystem: models.EcosystemPython},
	}, refs)
}

func TestParsePackageJSON(t *testing.T) {
	content := `{
		"name": "demo",
		"dependencies": {
			"lodash": "^4.17.21",
			"express": "~4.18.0"
		},
		"devDependencies": {
			"jest": "29.0.0",
			"lodash": "^4.0.0"
		}
	}`

	refs, err := ParsePackageJSON(strings.NewReader(content))
	require.NoError(t, err)

	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Name)
	}
	assert.Equal(t, []string{"express", "jest", "lodash"}, names)
	for _, ref := range refs {
		assert.Equal(t, models.EcosystemJavaScript, ref.Ecosystem)
	}
}

func TestParsePackageJSONInvalid(t *testing.T) {
	_, err := ParsePackageJSON(strings.NewReader("not json"))
	assert.Error(t, err)
}
