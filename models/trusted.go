package models

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TrustedPackage is a user-supplied allowlist entry merged into the
// top-package set at startup.
type TrustedPackage struct {
	Name      string `yaml:"name"`
	Ecosystem string `yaml:"ecosystem"`
	Note      string `yaml:"note,omitempty"`
}

type trustedPackagesFile struct {
	Packages []TrustedPackage `yaml:"packages"`
}

func LoadTrustedPackages(path string) ([]TrustedPackage, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read trusted packages file: %w", err)
	}

	var file trustedPackagesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse trusted packages file: %w", err)
	}

	return file.Packages, nil
}
