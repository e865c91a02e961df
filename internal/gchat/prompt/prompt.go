// Package prompt loads TOML prompt templates and renders them into the
// single prompt string that is sent to the model.
//
// A template file looks like:
//
//	system = "You are a terse assistant."
//	user = "Translate to {{lang}}: {{input}}"
//	model = "gemini:gemini-2.0-flash"  # optional
//	web_search = true                  # optional
package prompt

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/longkey1/gchat/internal/gchat"
)

const fileExt = ".toml"

// Template is a decoded prompt file
type Template struct {
	Name      string  `toml:"-"`
	Path      string  `toml:"-"`
	System    string  `toml:"system"`
	User      string  `toml:"user"`
	Model     *string `toml:"model,omitempty"`
	WebSearch *bool   `toml:"web_search,omitempty"`
}

// Load decodes the template at path and validates its optional model
func Load(path string) (*Template, error) {
	var tmpl Template
	if _, err := toml.DecodeFile(path, &tmpl); err != nil {
		return nil, fmt.Errorf("error decoding prompt file %s: %w", path, err)
	}
	tmpl.Path = path
	tmpl.Name = strings.TrimSuffix(filepath.Base(path), fileExt)

	if tmpl.Model != nil {
		if _, _, err := gchat.ParseModelString(*tmpl.Model); err != nil {
			return nil, fmt.Errorf("invalid model format in prompt template: %w", err)
		}
	}
	return &tmpl, nil
}

// Find locates the template called name ("foo" or "foo/bar") in dirs.
// Later directories take precedence over earlier ones.
func Find(name string, dirs []string) (*Template, error) {
	file := name
	if !strings.HasSuffix(file, fileExt) {
		file += fileExt
	}

	var found string
	for _, dir := range dirs {
		candidate := filepath.Join(dir, filepath.FromSlash(file))
		if _, err := os.Stat(candidate); err == nil {
			found = candidate
		}
	}
	if found == "" {
		return nil, fmt.Errorf("prompt file '%s' not found in any of the prompt directories: %v", file, dirs)
	}

	tmpl, err := Load(found)
	if err != nil {
		return nil, err
	}
	tmpl.Name = strings.TrimSuffix(filepath.ToSlash(name), fileExt)
	return tmpl, nil
}

// Entry is a template discovered by List
type Entry struct {
	Name string // relative name without extension, slash separated
	Dir  string // prompt directory it was found in
}

// List walks dirs recursively and returns every template sorted by name.
// Missing directories are skipped. When a name exists in several
// directories the later directory wins, matching Find.
func List(dirs []string) ([]Entry, error) {
	byName := make(map[string]string)
	for _, dir := range dirs {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(d.Name(), fileExt) {
				return nil
			}
			rel, err := filepath.Rel(dir, path)
			if err != nil {
				return nil
			}
			byName[filepath.ToSlash(strings.TrimSuffix(rel, fileExt))] = dir
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("error walking prompt directory %s: %w", dir, err)
		}
	}

	entries := make([]Entry, 0, len(byName))
	for name, dir := range byName {
		entries = append(entries, Entry{Name: name, Dir: dir})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	return entries, nil
}
