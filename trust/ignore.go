package trust

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// IgnoreEntry is one user-exempted package.
type IgnoreEntry struct {
	Name string `json:"name"`
	Note string `json:"note,omitempty"`
}

// IgnoreRegistry is the set of packages the user exempted from scoring.
// It is backed by a newline-delimited file of `<name> # <note>` lines
// that is reloaded when its modification time changes. The
// load/modify/persist cycle is serialized behind a single mutex since
// the file has no natural partition key.
type IgnoreRegistry struct {
	path string

	mu        sync.Mutex
	entries   map[string]string // name -> note
	modTime   time.Time
	unignored map[string]bool // rescore before trusting the cache again
}

func NewIgnoreRegistry(path string) *IgnoreRegistry {
	r := &IgnoreRegistry{
		path:      path,
		entries:   make(map[string]string),
		unignored: make(map[string]bool),
	}
	r.mu.Lock()
	r.reloadLocked()
	r.mu.Unlock()
	return r
}

// IsIgnored reports whether name is exempted, returning the user note.
func (r *IgnoreRegistry) IsIgnored(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadIfChangedLocked()
	note, ok := r.entries[strings.ToLower(name)]
	return note, ok
}

// Ignore adds a package to the registry and persists the file.
func (r *IgnoreRegistry) Ignore(name, note string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadIfChangedLocked()
	key := strings.ToLower(name)
	r.entries[key] = note
	delete(r.unignored, key)
	return r.persistLocked()
}

// Unignore removes a package and marks it for rescoring so a stale
// cached verdict is not served for a freshly unignored package.
func (r *IgnoreRegistry) Unignore(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadIfChangedLocked()
	key := strings.ToLower(name)
	if _, ok := r.entries[key]; !ok {
		return fmt.Errorf("package %q is not on the ignore list", name)
	}
	delete(r.entries, key)
	r.unignored[key] = true
	return r.persistLocked()
}

// ConsumeUnignored reports whether name was unignored this session and
// clears the flag, forcing exactly one cache-bypassing rescore.
func (r *IgnoreRegistry) ConsumeUnignored(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(name)
	if !r.unignored[key] {
		return false
	}
	delete(r.unignored, key)
	return true
}

// List returns every entry sorted by name.
func (r *IgnoreRegistry) List() []IgnoreEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reloadIfChangedLocked()

	entries := make([]IgnoreEntry, 0, len(r.entries))
	for name, note := range r.entries {
		entries = append(entries, IgnoreEntry{Name: name, Note: note})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

func (r *IgnoreRegistry) reloadIfChangedLocked() {
	if r.path == "" {
		return
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return
	}
	if info.ModTime().Equal(r.modTime) {
		return
	}
	r.reloadLocked()
}

func (r *IgnoreRegistry) reloadLocked() {
	if r.path == "" {
		return
	}
	f, err := os.Open(r.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Debug().Err(err).Str("path", r.path).Msg("failed to read ignore file")
		}
		return
	}
	defer f.Close()

	if info, err := f.Stat(); err == nil {
		r.modTime = info.ModTime()
	}

	previous := r.entries
	r.entries = make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		name := line
		note := ""
		if idx := strings.Index(line, "#"); idx >= 0 {
			name = strings.TrimSpace(line[:idx])
			note = strings.TrimSpace(line[idx+1:])
		}
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		r.entries[key] = note
		delete(r.unignored, key)
	}

	// Entries removed by editing the file directly must trigger the
	// same cache-bypassing rescore as the unignore command.
	for name := range previous {
		if _, ok := r.entries[name]; !ok {
			r.unignored[name] = true
		}
	}
}

func (r *IgnoreRegistry) persistLocked() error {
	if r.path == "" {
		return nil
	}

	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("# Packages exempted from trust scoring. One per line, optional note after #.\n")
	for _, name := range names {
		sb.WriteString(name)
		if note := r.entries[name]; note != "" {
			sb.WriteString(" # " + note)
		}
		sb.WriteString("\n")
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0o700); err != nil {
		return fmt.Errorf("failed to create ignore directory: %w", err)
	}
	if err := os.WriteFile(r.path, []byte(sb.String()), 0o600); err != nil {
		return fmt.Errorf("failed to write ignore file: %w", err)
	}
	if info, err := os.Stat(r.path); err == nil {
		r.modTime = info.ModTime()
	}
	return nil
}
