package trust

import (
	"bufio"
	_ "embed"
	"strings"

	"github.com/depsentry/depsentry/models"
)

//go:embed data/top_pypi.txt
var topPyPIPackages string

//go:embed data/top_npm.txt
var topNPMPackages string

//go:embed data/python_stdlib.txt
var pythonStdlibModules string

//go:embed data/node_builtins.txt
var nodeBuiltinModules string

// TopPackages holds the per-ecosystem allowlist of packages ranked top
// by download volume, plus the interpreter built-in module names that
// can never be third-party risk.
type TopPackages struct {
	top    map[models.Ecosystem]map[string]bool
	stdlib map[models.Ecosystem]map[string]bool
}

func NewTopPackages() *TopPackages {
	return &TopPackages{
		top: map[models.Ecosystem]map[string]bool{
			models.EcosystemPython:     parseNameList(topPyPIPackages),
			models.EcosystemJavaScript: parseNameList(topNPMPackages),
		},
		stdlib: map[models.Ecosystem]map[string]bool{
			models.EcosystemPython:     parseNameList(pythonStdlibModules),
			models.EcosystemJavaScript: parseNameList(nodeBuiltinModules),
		},
	}
}

func parseNameList(data string) map[string]bool {
	names := make(map[string]bool)
	scanner := bufio.NewScanner(strings.NewReader(data))
	for scanner.Scan() {
		name := strings.TrimSpace(scanner.Text())
		if name == "" || strings.HasPrefix(name, "#") {
			continue
		}
		names[strings.ToLower(name)] = true
	}
	return names
}

// Add extends the top-package set, used for user-trusted packages.
func (t *TopPackages) Add(ecosystem models.Ecosystem, name string) {
	set, ok := t.top[ecosystem]
	if !ok {
		set = make(map[string]bool)
		t.top[ecosystem] = set
	}
	set[strings.ToLower(name)] = true
}

// IsTop reports whether name is in the ecosystem's top-package set.
// The match is case-insensitive.
func (t *TopPackages) IsTop(ecosystem models.Ecosystem, name string) bool {
	return t.top[ecosystem][strings.ToLower(name)]
}

// IsStdlib reports whether name is an interpreter or runtime built-in
// module of the ecosystem.
func (t *TopPackages) IsStdlib(ecosystem models.Ecosystem, name string) bool {
	return t.stdlib[ecosystem][strings.ToLower(name)]
}

// NearMiss returns a top package whose name is at Levenshtein distance
// exactly 1 from name. Distance 0 is an exact match and never reported.
func (t *TopPackages) NearMiss(ecosystem models.Ecosystem, name string) (string, bool) {
	lower := strings.ToLower(name)
	if t.top[ecosystem][lower] {
		return "", false
	}
	for candidate := range t.top[ecosystem] {
		// A distance-1 pair can differ in length by at most one rune.
		if abs(len(candidate)-len(lower)) > 1 {
			continue
		}
		if Levenshtein(lower, candidate) == 1 {
			return candidate, true
		}
	}
	return "", false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
