package metadata

import "strings"

// irregularPlurals maps a singular entity name (lowercased) to its table
// name when simple "+s" pluralization is wrong.
var irregularPlurals = map[string]string{
	"person":     "people",
	"child":      "children",
	"tooth":      "teeth",
	"foot":       "feet",
	"mouse":      "mice",
	"goose":      "geese",
	"man":        "men",
	"woman":      "women",
	"datum":      "data",
	"medium":     "media",
	"index":      "indices",
	"matrix":     "matrices",
	"vertex":     "vertices",
	"axis":       "axes",
	"analysis":   "analyses",
	"basis":      "bases",
	"crisis":     "crises",
	"thesis":     "theses",
	"diagnosis":  "diagnoses",
	"synopsis":   "synopses",
	"criterion":  "criteria",
	"phenomenon": "phenomena",
	"radius":     "radii",
	"formula":    "formulae",
	"focus":      "foci",
	"nucleus":    "nuclei",
	"syllabus":   "syllabi",
	"curriculum": "curricula",
	"leaf":       "leaves",
	"life":       "lives",
	"knife":      "knives",
	"wife":       "wives",
	"self":       "selves",
	"half":       "halves",
	"loaf":       "loaves",
	"calf":       "calves",
	"hero":       "heroes",
	"potato":     "potatoes",
	"tomato":     "tomatoes",
	"echo":       "echoes",
	"sheep":      "sheep",
	"fish":       "fish",
	"series":     "series",
	"species":    "species",
	"status":     "statuses",
	"alias":      "aliases",
	"bus":        "buses",
}

// EntityToTableName converts an entity type name to a table name, handling
// PascalCase -> snake_case conversion and pluralization (including
// irregular plurals). Used by StaticRegistry as the default table name
// when an entity has no explicit override.
//
// Examples:
//
//	User      -> users
//	OrderItem -> order_items
//	Person    -> people
func EntityToTableName(entity string) string {
	var result []rune
	for i, r := range entity {
		if i > 0 && r >= 'A' && r <= 'Z' {
			result = append(result, '_')
		}
		result = append(result, r)
	}

	name := strings.ToLower(string(result))

	if plural, ok := irregularPlurals[name]; ok {
		return plural
	}

	if !strings.HasSuffix(name, "s") {
		name += "s"
	}

	return name
}
