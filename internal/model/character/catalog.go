package character

import (
	_ "embed"
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Realm is a digital origin a character can be born in.
type Realm struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	Story       string `json:"story" yaml:"story"`
	Color       string `json:"color" yaml:"color"`
}

// Species is the entity kind; its color doubles as the character's default color token.
type Species struct {
	Name   string `json:"name" yaml:"name"`
	Traits string `json:"traits" yaml:"traits"`
	Color  string `json:"color" yaml:"color"`
}

// Personality is a core personality archetype.
type Personality struct {
	Name  string `json:"name" yaml:"name"`
	Trait string `json:"trait" yaml:"trait"`
}

type catalogDocument struct {
	Realms        []Realm       `yaml:"realms"`
	Species       []Species     `yaml:"species"`
	Personalities []Personality `yaml:"personalities"`
}

// Catalog holds the attribute tables used by character creation. It is loaded once at
// startup and never mutated afterwards, so it is safe to share across goroutines.
type Catalog struct {
	realms        []Realm
	species       []Species
	personalities []Personality
}

// DefaultCatalog parses the catalog embedded in the binary.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(defaultCatalog)
}

// ParseCatalog decodes a YAML catalog document.
func ParseCatalog(data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	if err := checkNames("realm", len(doc.Realms), func(i int) string { return doc.Realms[i].Name }); err != nil {
		return nil, err
	}
	if err := checkNames("species", len(doc.Species), func(i int) string { return doc.Species[i].Name }); err != nil {
		return nil, err
	}
	if err := checkNames("personality", len(doc.Personalities), func(i int) string { return doc.Personalities[i].Name }); err != nil {
		return nil, err
	}

	return &Catalog{
		realms:        doc.Realms,
		species:       doc.Species,
		personalities: doc.Personalities,
	}, nil
}

func checkNames(kind string, n int, name func(int) string) error {
	if n == 0 {
		return fmt.Errorf("catalog has no %s entries", kind)
	}
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key := strings.TrimSpace(name(i))
		if key == "" {
			return fmt.Errorf("catalog %s entry %d has no name", kind, i)
		}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("catalog has duplicate %s %q", kind, key)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// Realms returns a copy of the realm table.
func (c *Catalog) Realms() []Realm {
	return append([]Realm(nil), c.realms...)
}

// Species returns a copy of the species table.
func (c *Catalog) Species() []Species {
	return append([]Species(nil), c.species...)
}

// Personalities returns a copy of the personality table.
func (c *Catalog) Personalities() []Personality {
	return append([]Personality(nil), c.personalities...)
}

// FindRealm looks up a realm by name.
func (c *Catalog) FindRealm(name string) (Realm, bool) {
	for _, item := range c.realms {
		if item.Name == name {
			return item, true
		}
	}
	return Realm{}, false
}

// FindSpecies looks up a species by name.
func (c *Catalog) FindSpecies(name string) (Species, bool) {
	for _, item := range c.species {
		if item.Name == name {
			return item, true
		}
	}
	return Species{}, false
}

// FindPersonality looks up a personality by name.
func (c *Catalog) FindPersonality(name string) (Personality, bool) {
	for _, item := range c.personalities {
		if item.Name == name {
			return item, true
		}
	}
	return Personality{}, false
}

// Knows reports whether realm, species and personality are all catalog entries.
func (c *Catalog) Knows(d Descriptor) bool {
	_, realmOK := c.FindRealm(d.Realm)
	_, speciesOK := c.FindSpecies(d.Species)
	_, personalityOK := c.FindPersonality(d.Personality)
	return realmOK && speciesOK && personalityOK
}

// Normalize returns a copy of d with the cosmic phase derived from the age and the color
// token taken from the species when the caller did not pick one.
func (c *Catalog) Normalize(d Descriptor) Descriptor {
	d.Name = strings.TrimSpace(d.Name)
	d.CosmicPhase = PhaseForAge(d.Age)
	if d.Color == "" {
		if species, ok := c.FindSpecies(d.Species); ok {
			d.Color = species.Color
		}
	}
	return d
}

var phaseOpeners = map[CosmicPhase]string{
	PhaseYoung:   "A sprightly",
	PhaseMature:  "A seasoned",
	PhaseAncient: "An ancient",
}

// Describe renders the creation-screen blurb for a character. Unknown catalog entries are
// skipped rather than rejected.
func (c *Catalog) Describe(d Descriptor) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s %s-cycle-old digital native who probably thinks dial-up internet is a prehistoric ritual.",
		phaseOpeners[d.Phase()], strconv.FormatFloat(d.Age, 'f', -1, 64))

	if realm, ok := c.FindRealm(d.Realm); ok {
		fmt.Fprintf(&b, " Born in %s, %s.", realm.Name, realm.Story)
	}
	if gender := strings.TrimSpace(d.Gender); gender != "" {
		fmt.Fprintf(&b, " Gender expression: %s.", gender)
	}
	if personality, ok := c.FindPersonality(d.Personality); ok {
		fmt.Fprintf(&b, " %s.", personality.Trait)
	}
	if species, ok := c.FindSpecies(d.Species); ok {
		fmt.Fprintf(&b, " Think of them as your personal %s who %s and guides you through the digital dimensions.",
			strings.ToLower(species.Name), strings.ToLower(species.Traits))
	}
	b.WriteString(" They genuinely want to help you debug your entity consciousness and optimize your existence through personalized algorithms.")

	return b.String()
}
