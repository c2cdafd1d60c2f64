package models

import (
	"strings"

	"github.com/package-url/packageurl-go"
)

// PackageReference is a single package name extracted from an install
// command or a manifest file. Version is the pinned version when the
// spec carried one, empty otherwise.
type PackageReference struct {
	Name      string    `json:"name"`
	Version   string    `json:"version,omitempty"`
	Ecosystem Ecosystem `json:"ecosystem"`
}

// Purl returns the package-url form of the reference, e.g.
// pkg:pypi/requests@2.31.0 or pkg:npm/%40babel/core.
func (p PackageReference) Purl() string {
	namespace := ""
	name := p.Name

	if p.Ecosystem == EcosystemJavaScript && strings.HasPrefix(name, "@") {
		if idx := strings.Index(name, "/"); idx > 0 {
			namespace = name[:idx]
			name = name[idx+1:]
		}
	}

	purl := packageurl.NewPackageURL(p.Ecosystem.PurlType(), namespace, name, p.Version, nil, "")
	return purl.ToString()
}

// RegistryLink returns the public registry page for the package.
func (p PackageReference) RegistryLink() string {
	switch p.Ecosystem {
	case EcosystemPython:
		return "https://pypi.org/project/" + p.Name + "/"
	case EcosystemJavaScript:
		return "https://www.npmjs.com/package/" + p.Name
	}
	return ""
}
