package character

import (
	"strings"
	"testing"
)

func TestDefaultCatalogLoads(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	if got := len(catalog.Realms()); got != 6 {
		t.Fatalf("expected 6 realms, got %d", got)
	}
	if got := len(catalog.Species()); got != 6 {
		t.Fatalf("expected 6 species, got %d", got)
	}
	if got := len(catalog.Personalities()); got != 6 {
		t.Fatalf("expected 6 personalities, got %d", got)
	}
}

func TestCatalogListsAreCopies(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	realms := catalog.Realms()
	realms[0].Name = "mutated"

	if catalog.Realms()[0].Name == "mutated" {
		t.Fatal("catalog must not expose its backing slice")
	}
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	doc := []byte(`
realms: [{name: A}, {name: A}]
species: [{name: S}]
personalities: [{name: P}]
`)
	if _, err := ParseCatalog(doc); err == nil {
		t.Fatal("expected duplicate realm error")
	}
}

func TestParseCatalogRejectsEmptyTable(t *testing.T) {
	doc := []byte(`
realms: [{name: A}]
species: []
personalities: [{name: P}]
`)
	if _, err := ParseCatalog(doc); err == nil {
		t.Fatal("expected empty species error")
	}
}

func TestPhaseForAge(t *testing.T) {
	cases := []struct {
		age  float64
		want CosmicPhase
	}{
		{-40.28, PhaseYoung},
		{0, PhaseYoung},
		{999.99, PhaseYoung},
		{1000, PhaseMature},
		{2999, PhaseMature},
		{3000, PhaseAncient},
		{6788, PhaseAncient},
	}

	for _, tc := range cases {
		if got := PhaseForAge(tc.age); got != tc.want {
			t.Fatalf("PhaseForAge(%v) = %s, want %s", tc.age, got, tc.want)
		}
	}
}

func TestNormalizeFillsPhaseAndColor(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	in := Descriptor{Name: "  Byte  ", Realm: "Void Station", Species: "Neon Ghost", Personality: "Sassy", Age: 1850}
	out := catalog.Normalize(in)

	if out.Name != "Byte" {
		t.Fatalf("expected trimmed name, got %q", out.Name)
	}
	if out.CosmicPhase != PhaseMature {
		t.Fatalf("expected mature phase, got %s", out.CosmicPhase)
	}
	if out.Color != "#32cd32" {
		t.Fatalf("expected species color, got %s", out.Color)
	}
	if in.CosmicPhase != "" || in.Color != "" {
		t.Fatal("Normalize must not mutate its input")
	}
}

func TestNormalizeKeepsChosenColor(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	out := catalog.Normalize(Descriptor{Species: "Neon Ghost", Color: "#000000"})
	if out.Color != "#000000" {
		t.Fatalf("expected caller color kept, got %s", out.Color)
	}
}

func TestDescribeMentionsCatalogEntries(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	text := catalog.Describe(Descriptor{Realm: "Elon Mars", Species: "Cyber Shaman", Personality: "Fumble", Age: 4200})

	for _, want := range []string{"An ancient 4200-cycle-old", "Born in Elon Mars", "cyber shaman", "experimental joy"} {
		if !strings.Contains(text, want) {
			t.Fatalf("description missing %q: %s", want, text)
		}
	}
}

func TestKnows(t *testing.T) {
	catalog, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("DefaultCatalog err: %v", err)
	}

	if !catalog.Knows(Descriptor{Realm: "K-Galaxloop", Species: "Quantum Fairy", Personality: "Pioneer"}) {
		t.Fatal("expected known combination")
	}
	if catalog.Knows(Descriptor{Realm: "Cyber Tokyo", Species: "Quantum Fairy", Personality: "Pioneer"}) {
		t.Fatal("expected unknown realm to be reported")
	}
}

func TestDisplayNameFallback(t *testing.T) {
	if got := (Descriptor{Species: "Echo Prism"}).DisplayName(); got != "Echo Prism" {
		t.Fatalf("unexpected display name: %s", got)
	}
	if got := (Descriptor{}).DisplayName(); got != "Digital Entity" {
		t.Fatalf("unexpected display name: %s", got)
	}
}
