package translation

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDictionaryLookup(t *testing.T) {
	d := NewDictionary(map[string]string{"  Pico de Gallo ": " pico de gallo ", "rice": "arroz blanco", "   ": "ignored"})

	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"hamburger bun", "pan de hamburguesa", true},
		{"\tHamburger Bun\n", "pan de hamburguesa", true},
		{"pico de gallo", "pico de gallo", true},
		{"rice", "arroz blanco", true},
		{"hamburger", "hamburguesa", true},
		{"hamburger buns", "", false},
		{"bun", "", false},
	}
	for _, tt := range tests {
		got, ok := d.Lookup(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("Lookup(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if d.Len() != NewDictionary(nil).Len()+1 {
		t.Errorf("unexpected size %d", d.Len())
	}

	var nilDict *Dictionary
	if _, ok := nilDict.Lookup("rice"); ok {
		t.Error("nil dictionary should not match")
	}
}

func TestLoadDictionary(t *testing.T) {
	d, err := LoadDictionary("")
	if err != nil || d.Len() == 0 {
		t.Fatalf("LoadDictionary(\"\") = %v, %v", d, err)
	}

	path := filepath.Join(t.TempDir(), "extra.json")
	if err := os.WriteFile(path, []byte(`{"Arepa": "arepa", "hamburger bun": "pan de hamburguesa"}`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	d, err = LoadDictionary(path)
	if err != nil {
		t.Fatalf("LoadDictionary: %v", err)
	}
	if got, ok := d.Lookup("arepa"); !ok || got != "arepa" {
		t.Fatalf("Lookup(arepa) = %q, %v", got, ok)
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	os.WriteFile(bad, []byte(`["not", "an", "object"]`), 0o644)
	if _, err := LoadDictionary(bad); err == nil {
		t.Fatal("expected parse error")
	}
	if _, err := LoadDictionary(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatal("expected read error")
	}
}
