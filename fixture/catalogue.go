// Package fixture is the fixture library: manufacturers, device types and
// the profiles that say how a fixture is addressed and which commands it
// understands.
package fixture

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed library.yaml
var defaultLibrary []byte

// DeviceType is a top-level fixture category
type DeviceType struct {
	Caption  string            `yaml:"caption"`
	SubTypes map[string]string `yaml:"subtypes,omitempty"`
}

// Named pairs an id with its display name
type Named struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Entry is one row of a device listing
type Entry struct {
	ID               string `json:"id"`
	Manufacturer     string `json:"manufacturer"`
	ManufacturerName string `json:"manufacturer_name"`
	Type             string `json:"type"`
	SubType          string `json:"subtype,omitempty"`
	Name             string `json:"name"`
}

// Filter narrows a device listing; empty fields match everything
type Filter struct {
	Manufacturer string
	Type         string
	SubType      string
}

type libraryFile struct {
	Manufacturers map[string]string     `yaml:"manufacturers"`
	Types         map[string]DeviceType `yaml:"types"`
	Fixtures      []*Profile            `yaml:"fixtures"`
}

// Catalogue holds every known fixture profile
type Catalogue struct {
	manufacturers map[string]string
	types         map[string]DeviceType
	profiles      map[string]*Profile
}

// New returns an empty catalogue
func New() *Catalogue {
	return &Catalogue{
		manufacturers: make(map[string]string),
		types:         make(map[string]DeviceType),
		profiles:      make(map[string]*Profile),
	}
}

// Parse reads a library document
func Parse(data []byte) (*Catalogue, error) {
	var lib libraryFile
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidLibrary, err)
	}

	c := New()
	for id, name := range lib.Manufacturers {
		c.manufacturers[id] = name
	}
	for id, t := range lib.Types {
		c.types[id] = t
	}
	for _, p := range lib.Fixtures {
		if err := c.add(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// LoadFile reads a library from disk
func LoadFile(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default returns the built-in library
func Default() (*Catalogue, error) {
	return Parse(defaultLibrary)
}

// MustDefault is Default for callers that cannot recover
func MustDefault() *Catalogue {
	c, err := Default()
	if err != nil {
		panic(fmt.Sprintf("built-in fixture library: %v", err))
	}
	return c
}

func (c *Catalogue) add(p *Profile) error {
	if p == nil {
		return fmt.Errorf("%w: empty fixture entry", ErrInvalidLibrary)
	}
	if err := p.link(); err != nil {
		return err
	}
	if _, dup := c.profiles[p.ID]; dup {
		return fmt.Errorf("%w: fixture %s defined twice", ErrInvalidLibrary, p.ID)
	}
	if _, ok := c.manufacturers[p.Manufacturer]; !ok {
		return fmt.Errorf("%w: %s: unknown manufacturer %q", ErrInvalidLibrary, p.ID, p.Manufacturer)
	}
	t, ok := c.types[p.Type]
	if !ok {
		return fmt.Errorf("%w: %s: unknown type %q", ErrInvalidLibrary, p.ID, p.Type)
	}
	if p.SubType != "" {
		if _, ok := t.SubTypes[p.SubType]; !ok {
			return fmt.Errorf("%w: %s: unknown subtype %q of %s", ErrInvalidLibrary, p.ID, p.SubType, p.Type)
		}
	}
	c.profiles[p.ID] = p
	return nil
}

// Merge adds everything from other. A fixture id present in both is an
// error; manufacturer and type names from other win.
func (c *Catalogue) Merge(other *Catalogue) error {
	for id := range other.profiles {
		if _, dup := c.profiles[id]; dup {
			return fmt.Errorf("%w: fixture %s defined twice", ErrInvalidLibrary, id)
		}
	}
	for id, name := range other.manufacturers {
		c.manufacturers[id] = name
	}
	for id, t := range other.types {
		existing, ok := c.types[id]
		if !ok {
			c.types[id] = t
			continue
		}
		merged := DeviceType{Caption: t.Caption, SubTypes: make(map[string]string)}
		for k, v := range existing.SubTypes {
			merged.SubTypes[k] = v
		}
		for k, v := range t.SubTypes {
			merged.SubTypes[k] = v
		}
		c.types[id] = merged
	}
	for id, p := range other.profiles {
		c.profiles[id] = p
	}
	return nil
}

// Profile returns the profile for a fixture id
func (c *Catalogue) Profile(id string) (*Profile, error) {
	p, ok := c.profiles[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownFixture, id)
	}
	return p, nil
}

// ManufacturerName returns the display name of a manufacturer id
func (c *Catalogue) ManufacturerName(id string) string {
	if name, ok := c.manufacturers[id]; ok {
		return name
	}
	return id
}

// Label returns "Manufacturer Model" for a fixture id
func (c *Catalogue) Label(id string) string {
	p, ok := c.profiles[id]
	if !ok {
		return id
	}
	return c.ManufacturerName(p.Manufacturer) + " " + p.Name
}

// Manufacturers returns all manufacturers sorted by name
func (c *Catalogue) Manufacturers() []Named {
	return sortedNamed(c.manufacturers)
}

// DeviceTypes returns all top-level types sorted by caption
func (c *Catalogue) DeviceTypes() []Named {
	m := make(map[string]string, len(c.types))
	for id, t := range c.types {
		m[id] = t.Caption
	}
	return sortedNamed(m)
}

// SubTypes returns the subtypes of a type, nil if it has none
func (c *Catalogue) SubTypes(typeID string) []Named {
	t, ok := c.types[typeID]
	if !ok || len(t.SubTypes) == 0 {
		return nil
	}
	return sortedNamed(t.SubTypes)
}

// Devices lists fixtures matching f, by manufacturer then model
func (c *Catalogue) Devices(f Filter) []Entry {
	var out []Entry
	for _, p := range c.profiles {
		if f.Manufacturer != "" && p.Manufacturer != f.Manufacturer {
			continue
		}
		if f.Type != "" && p.Type != f.Type {
			continue
		}
		if f.SubType != "" && p.SubType != f.SubType {
			continue
		}
		out = append(out, Entry{
			ID:               p.ID,
			Manufacturer:     p.Manufacturer,
			ManufacturerName: c.ManufacturerName(p.Manufacturer),
			Type:             c.types[p.Type].Caption,
			SubType:          c.types[p.Type].SubTypes[p.SubType],
			Name:             p.Name,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ManufacturerName != out[j].ManufacturerName {
			return out[i].ManufacturerName < out[j].ManufacturerName
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func sortedNamed(m map[string]string) []Named {
	out := make([]Named, 0, len(m))
	for id, name := range m {
		out = append(out, Named{ID: id, Name: name})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}
