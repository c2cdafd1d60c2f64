// Package extractor turns shell command lines and manifest files into
// package references for the scoring engine.
package extractor

import (
	"strings"

	goversion "github.com/hashicorp/go-version"

	"github.com/depsentry/depsentry/models"
)

type installVerb struct {
	tokens    []string
	ecosystem models.Ecosystem
}

// Ordered table of install-verb prefixes. Longer prefixes come before
// their shorter variants so `python -m pip install` wins over `pip install`.
var installVerbs = []installVerb{
	{[]string{"python", "-m", "pip", "install"}, models.EcosystemPython},
	{[]string{"python3", "-m", "pip", "install"}, models.EcosystemPython},
	{[]string{"pip", "install"}, models.EcosystemPython},
	{[]string{"pip3", "install"}, models.EcosystemPython},
	{[]string{"poetry", "add"}, models.EcosystemPython},
	{[]string{"pipenv", "install"}, models.EcosystemPython},
	{[]string{"npm", "install"}, models.EcosystemJavaScript},
	{[]string{"npm", "i"}, models.EcosystemJavaScript},
	{[]string{"npm", "add"}, models.EcosystemJavaScript},
	{[]string{"yarn", "add"}, models.EcosystemJavaScript},
	{[]string{"pnpm", "add"}, models.EcosystemJavaScript},
	{[]string{"bun", "add"}, models.EcosystemJavaScript},
}

// Extract parses a command line into zero or more package references.
// Command lines that match no install verb, including uninstall and
// remove commands, yield an empty list. Pure, no side effects.
func Extract(commandLine string) []models.PackageReference {
	tokens := strings.Fields(commandLine)
	if len(tokens) == 0 {
		return nil
	}

	for _, verb := range installVerbs {
		rest, ok := matchVerb(tokens, verb.tokens)
		if !ok {
			continue
		}

		var refs []models.PackageReference
		for _, spec := range rest {
			if strings.HasPrefix(spec, "-") {
				continue
			}
			ref, ok := cleanSpec(spec, verb.ecosystem)
			if !ok {
				continue
			}
			refs = append(refs, ref)
		}
		return refs
	}

	return nil
}

func matchVerb(tokens, verb []string) ([]string, bool) {
	if len(tokens) < len(verb) {
		return nil, false
	}
	for i, v := range verb {
		if tokens[i] != v {
			return nil, false
		}
	}
	return tokens[len(verb):], true
}

var pythonVersionOps = []string{"===", "==", ">=", "<=", "!=", "~=", ">", "<"}

// cleanSpec strips version pins, extras and tags from one candidate spec.
func cleanSpec(spec string, ecosystem models.Ecosystem) (models.PackageReference, bool) {
	name := spec
	version := ""

	switch ecosystem {
	case models.EcosystemPython:
		for _, op := range pythonVersionOps {
			if idx := strings.Index(name, op); idx >= 0 {
				version = strings.TrimSpace(name[idx+len(op):])
				name = name[:idx]
				break
			}
		}
		if idx := strings.Index(name, "["); idx >= 0 {
			name = name[:idx]
		}
		if idx := strings.Index(name, "@"); idx >= 0 {
			// poetry supports name@version constraints
			version = name[idx+1:]
			name = name[:idx]
		}
	case models.EcosystemJavaScript:
		// The version tag is the last @ that is not the scope marker.
		if idx := strings.LastIndex(name, "@"); idx > 0 {
			version = name[idx+1:]
			name = name[:idx]
		}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return models.PackageReference{}, false
	}

	return models.PackageReference{
		Name:      name,
		Version:   canonicalVersion(version),
		Ecosystem: ecosystem,
	}, true
}

// canonicalVersion normalizes an exact version pin, keeping ranges and
// dist-tags as-is when they do not parse as a version.
func canonicalVersion(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	v, err := goversion.NewVersion(raw)
	if err != nil {
		return raw
	}
	return v.String()
}
