// Package manifest loads the dependency manifest of an application version.
// YAML and JSON documents are both accepted.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/quantmind-br/depctl/internal/core"
	"github.com/quantmind-br/depctl/internal/version"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// NotAvailable marks a dependency with no install command
const NotAvailable = "not-available"

// ErrInvalidManifest wraps every validation failure
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is a parsed dependency manifest
type Manifest struct {
	Name         string
	Version      string
	Dependencies []core.Dependency
}

// Keys returns the dependency keys in manifest order
func (m *Manifest) Keys() []string {
	keys := make([]string, len(m.Dependencies))
	for i, d := range m.Dependencies {
		keys[i] = d.Key
	}
	return keys
}

// Lookup finds a dependency by key
func (m *Manifest) Lookup(key string) (core.Dependency, bool) {
	for _, d := range m.Dependencies {
		if d.Key == key {
			return d, true
		}
	}
	return core.Dependency{}, false
}

type document struct {
	Name         string    `yaml:"name"`
	Version      string    `yaml:"version"`
	Dependencies yaml.Node `yaml:"dependencies"`
}

type entry struct {
	Key                string                 `yaml:"key"`
	Name               string                 `yaml:"name"`
	Type               core.DependencyType    `yaml:"type"`
	CheckCommand       string                 `yaml:"checkCommand"`
	InstallCommand     installCommand         `yaml:"installCommand"`
	DownloadURL        string                 `yaml:"downloadUrl"`
	Description        string                 `yaml:"description"`
	VersionConstraints core.VersionConstraint `yaml:"versionConstraints"`
}

// installCommand accepts:
//  1. a string: one command for every region
//  2. a mapping with china/global and an optional default fallback
//  3. null, an empty string or "not-available": no command
type installCommand struct {
	cmd core.InstallCommand
}

func (c *installCommand) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		s := strings.TrimSpace(value.Value)
		if value.Tag == "!!null" || s == "" || s == NotAvailable {
			c.cmd = core.NoCommand()
			return nil
		}
		c.cmd = core.SingleCommand(s)
		return nil

	case yaml.MappingNode:
		var regional struct {
			China   string `yaml:"china"`
			Global  string `yaml:"global"`
			Default string `yaml:"default"`
		}
		if err := value.Decode(&regional); err != nil {
			return err
		}
		china := strings.TrimSpace(regional.China)
		global := strings.TrimSpace(regional.Global)
		fallback := strings.TrimSpace(regional.Default)
		switch {
		case china != "" || global != "":
			c.cmd = core.RegionalCommand(china, global).WithFallback(fallback)
		case fallback != "":
			c.cmd = core.SingleCommand(fallback)
		default:
			c.cmd = core.NoCommand()
		}
		return nil

	default:
		return fmt.Errorf("line %d: installCommand must be a string or a mapping", value.Line)
	}
}

// Parse decodes a manifest document. Dependencies may be a mapping keyed
// by dependency key or a list of entries carrying a key field; either way
// the document order is kept.
func Parse(data []byte) (*Manifest, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	m := &Manifest{Name: doc.Name, Version: doc.Version}
	entries, err := decodeDependencies(&doc.Dependencies)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.Key == "" {
			return nil, fmt.Errorf("%w: dependency without key", ErrInvalidManifest)
		}
		if seen[e.Key] {
			return nil, fmt.Errorf("%w: duplicate dependency %q", ErrInvalidManifest, e.Key)
		}
		seen[e.Key] = true

		if err := validate(e); err != nil {
			return nil, fmt.Errorf("%w: dependency %q: %w", ErrInvalidManifest, e.Key, err)
		}

		m.Dependencies = append(m.Dependencies, core.Dependency{
			Key:                e.Key,
			Name:               e.Name,
			Type:               e.Type,
			CheckCommand:       strings.TrimSpace(e.CheckCommand),
			InstallCommand:     e.InstallCommand.cmd,
			DownloadURL:        e.DownloadURL,
			Description:        e.Description,
			VersionConstraints: e.VersionConstraints,
		})
	}
	return m, nil
}

func decodeDependencies(node *yaml.Node) ([]entry, error) {
	switch node.Kind {
	case 0:
		return nil, nil

	case yaml.MappingNode:
		entries := make([]entry, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			var e entry
			if err := node.Content[i+1].Decode(&e); err != nil {
				return nil, err
			}
			e.Key = node.Content[i].Value
			entries = append(entries, e)
		}
		return entries, nil

	case yaml.SequenceNode:
		var entries []entry
		if err := node.Decode(&entries); err != nil {
			return nil, err
		}
		return entries, nil

	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("line %d: dependencies must be a mapping or a list", node.Line)
}

func validate(e entry) error {
	switch e.Type {
	case "", core.DependencyTypeSystemRuntime, core.DependencyTypeCLITool, core.DependencyTypeLanguageRuntime:
	default:
		return fmt.Errorf("unknown type %q", e.Type)
	}

	c := e.VersionConstraints
	bounds := []struct{ field, value string }{
		{"exact", c.Exact}, {"min", c.Min}, {"max", c.Max}, {"recommended", c.Recommended},
	}
	for _, b := range bounds {
		if b.value == "" {
			continue
		}
		if _, err := version.Parse(b.value); err != nil {
			return fmt.Errorf("versionConstraints.%s: %w", b.field, err)
		}
	}
	return nil
}

// Load reads and parses the manifest at path
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
