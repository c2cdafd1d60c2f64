package extractor

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/depsentry/depsentry/models"
)

// FromManifest parses a dependency manifest into package references.
// The manifest type is detected from the file name.
func FromManifest(path string) ([]models.PackageReference, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest: %w", err)
	}
	defer f.Close()

	base := filepath.Base(path)
	switch {
	case base == "package.json":
		return ParsePackageJSON(f)
	case strings.HasSuffix(base, ".txt"):
		return ParseRequirements(f)
	}
	return nil, fmt.Errorf("unsupported manifest %q, expected requirements.txt or package.json", base)
}

// ParseRequirements parses pip requirements.txt content. Comment lines,
// blank lines, pip options and file/URL requirements are skipped.
func ParseRequirements(r io.Reader) ([]models.PackageReference, error) {
	var refs []models.PackageReference

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if idx := strings.Index(line, " #"); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "-") {
			continue
		}
		if strings.Contains(line, "://") || strings.HasPrefix(line, ".") || strings.HasPrefix(line, "/") {
			continue
		}
		ref, ok := cleanSpec(line, models.EcosystemPython)
		if !ok {
			continue
		}
		refs = append(refs, ref)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read requirements: %w", err)
	}

	return refs, nil
}

// ParsePackageJSON parses npm package.json content, collecting
// dependencies and devDependencies in name order.
func ParsePackageJSON(r io.Reader) ([]models.PackageReference, error) {
	var manifest struct {
		Dependencies    map[string]string `json:"dependencies"`
		DevDependencies map[string]string `json:"devDependencies"`
	}
	if err := json.NewDecoder(r).Decode(&manifest); err != nil {
		return nil, fmt.Errorf("failed to parse package.json: %w", err)
	}

	deps := make(map[string]string, len(manifest.Dependencies)+len(manifest.DevDependencies))
	for name, constraint := range manifest.Dependencies {
		deps[name] = constraint
	}
	for name, constraint := range manifest.DevDependencies {
		if _, ok := deps[name]; !ok {
			deps[name] = constraint
		}
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	refs := make([]models.PackageReference, 0, len(names))
	for _, name := range names {
		refs = append(refs, models.PackageReference{
			Name:      name,
			Version:   canonicalVersion(strings.TrimLeft(deps[name], "^~=v")),
			Ecosystem: models.EcosystemJavaScript,
		})
	}

	return refs, nil
}
