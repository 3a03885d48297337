package translation

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// builtinEntries maps English food names to their Spanish canonical phrase.
var builtinEntries = map[string]string{
	"apple":             "manzana",
	"avocado":           "aguacate",
	"bacon":             "tocino",
	"banana":            "plátano",
	"beans":             "frijoles",
	"beef":              "carne de res",
	"beef patty":        "carne de hamburguesa",
	"black beans":       "frijoles negros",
	"bread":             "pan",
	"breakfast":         "desayuno",
	"broccoli":          "brócoli",
	"brown rice":        "arroz integral",
	"butter":            "mantequilla",
	"carrot":            "zanahoria",
	"cheese":            "queso",
	"cheeseburger":      "hamburguesa con queso",
	"chicken":           "pollo",
	"chicken breast":    "pechuga de pollo",
	"chickpeas":         "garbanzos",
	"coffee":            "café",
	"corn":              "maíz",
	"corn tortilla":     "tortilla de maíz",
	"cucumber":          "pepino",
	"dinner":            "cena",
	"egg":               "huevo",
	"eggs":              "huevos",
	"fish":              "pescado",
	"french fries":      "papas fritas",
	"fried egg":         "huevo frito",
	"grilled chicken":   "pollo a la parrilla",
	"ham":               "jamón",
	"hamburger":         "hamburguesa",
	"hamburger bun":     "pan de hamburguesa",
	"ketchup":           "salsa de tomate",
	"lentils":           "lentejas",
	"lettuce":           "lechuga",
	"lunch":             "almuerzo",
	"mashed potatoes":   "puré de papas",
	"mayonnaise":        "mayonesa",
	"milk":              "leche",
	"mushrooms":         "champiñones",
	"oatmeal":           "avena",
	"onion":             "cebolla",
	"orange":            "naranja",
	"orange juice":      "jugo de naranja",
	"pasta":             "pasta",
	"peas":              "guisantes",
	"pizza":             "pizza",
	"pork":              "cerdo",
	"potato":            "papa",
	"rice":              "arroz",
	"salad":             "ensalada",
	"salmon":            "salmón",
	"sausage":           "salchicha",
	"snack":             "merienda",
	"soup":              "sopa",
	"spaghetti":         "espaguetis",
	"steak":             "bistec",
	"strawberries":      "fresas",
	"sugar":             "azúcar",
	"sweet potato":      "batata",
	"toast":             "pan tostado",
	"tomato":            "tomate",
	"tomato sauce":      "salsa de tomate",
	"tuna":              "atún",
	"white bread":       "pan blanco",
	"white rice":        "arroz blanco",
	"whole wheat bread": "pan integral",
	"yogurt":            "yogur",
}

// Dictionary is an exact-match phrase table for the source to target
// direction. It is immutable once built.
type Dictionary struct {
	entries map[string]string
}

// NewDictionary returns the built-in table merged with extra entries.
func NewDictionary(extra map[string]string) *Dictionary {
	entries := make(map[string]string, len(builtinEntries)+len(extra))
	for k, v := range builtinEntries {
		entries[normalize(k)] = v
	}
	for k, v := range extra {
		if key := normalize(k); key != "" && strings.TrimSpace(v) != "" {
			entries[key] = strings.TrimSpace(v)
		}
	}
	return &Dictionary{entries: entries}
}

// LoadDictionary builds a dictionary with extra entries read from a JSON
// object file. An empty path yields the built-in table.
func LoadDictionary(path string) (*Dictionary, error) {
	if path == "" {
		return NewDictionary(nil), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dictionary file: %w", err)
	}
	var extra map[string]string
	if err := json.Unmarshal(data, &extra); err != nil {
		return nil, fmt.Errorf("failed to parse dictionary file: %w", err)
	}
	return NewDictionary(extra), nil
}

// Lookup matches the whole of text, trimmed and lower-cased.
func (d *Dictionary) Lookup(text string) (string, bool) {
	if d == nil {
		return "", false
	}
	v, ok := d.entries[normalize(text)]
	return v, ok
}

func (d *Dictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.entries)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
