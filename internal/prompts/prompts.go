// Package prompts loads the quick instruction templates offered next to the
// prompt field.
package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

type file struct {
	Templates []string `yaml:"templates"`
}

// Set is an ordered list of quick templates.
type Set struct {
	templates []string
}

// Default returns the built-in templates.
func Default() *Set {
	s, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("prompts: embedded defaults: %v", err))
	}
	return s
}

// Load reads templates from a YAML file. An empty path yields the defaults.
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompt templates: %w", err)
	}
	return Parse(data)
}

// Parse decodes a templates document. Blank entries are dropped.
func Parse(data []byte) (*Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse prompt templates: %w", err)
	}
	s := &Set{}
	for _, t := range f.Templates {
		if t = strings.TrimSpace(t); t != "" {
			s.templates = append(s.templates, t)
		}
	}
	if len(s.templates) == 0 {
		return nil, fmt.Errorf("parse prompt templates: no templates defined")
	}
	return s, nil
}

// All returns a copy of the templates.
func (s *Set) All() []string {
	return append([]string(nil), s.templates...)
}

// Get returns the template at index i.
func (s *Set) Get(i int) (string, bool) {
	if i < 0 || i >= len(s.templates) {
		return "", false
	}
	return s.templates[i], true
}
