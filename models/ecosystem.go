package models

import "fmt"

// Ecosystem identifies a package-manager universe.
type Ecosystem string

const (
	EcosystemPython     Ecosystem = "python"
	EcosystemJavaScript Ecosystem = "javascript"
)

// Ecosystems lists every supported ecosystem.
var Ecosystems = []Ecosystem{EcosystemPython, EcosystemJavaScript}

func ParseEcosystem(s string) (Ecosystem, error) {
	switch s {
	case "python", "pypi":
		return EcosystemPython, nil
	case "javascript", "js", "npm":
		return EcosystemJavaScript, nil
	}
	return "", fmt.Errorf("unknown ecosystem %q, expected python or javascript", s)
}

// PurlType returns the package-url type for the ecosystem.
func (e Ecosystem) PurlType() string {
	switch e {
	case EcosystemPython:
		return "pypi"
	case EcosystemJavaScript:
		return "npm"
	}
	return string(e)
}

// RegistryName returns the display name of the ecosystem's registry.
func (e Ecosystem) RegistryName() string {
	switch e {
	case EcosystemPython:
		return "PyPI"
	case EcosystemJavaScript:
		return "npm"
	}
	return string(e)
}
