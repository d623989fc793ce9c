package impact

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Capacity codes as stored in physical_capacities.code.
const (
	CapacityResistencia   = "resistencia"
	CapacityFuerza        = "fuerza"
	CapacityMetcon        = "metcon"
	CapacityGimnasticos   = "gimnásticos"
	CapacityVelocidad     = "velocidad"
	CapacityPotencia      = "potencia"
	CapacityCargaMuscular = "carga muscular"
)

// keyed by the folded form, see foldKey
var capacityAliases = map[string]string{
	"resistance":     CapacityResistencia,
	"resistencia":    CapacityResistencia,
	"strength":       CapacityFuerza,
	"fuerza":         CapacityFuerza,
	"metcon":         CapacityMetcon,
	"gymnastics":     CapacityGimnasticos,
	"gimnastics":     CapacityGimnasticos,
	"gimnasticos":    CapacityGimnasticos,
	"gimnastico":     CapacityGimnasticos,
	"velocidad":      CapacityVelocidad,
	"speed":          CapacityVelocidad,
	"potencia":       CapacityPotencia,
	"power":          CapacityPotencia,
	"carga muscular": CapacityCargaMuscular,
	"muscular load":  CapacityCargaMuscular,
}

// foldKey lower-cases, strips accents and turns '_' and '-' into spaces.
func foldKey(key string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, key)
	if err != nil {
		folded = key
	}
	folded = strings.NewReplacer("_", " ", "-", " ").Replace(strings.ToLower(folded))
	return strings.Join(strings.Fields(folded), " ")
}

// CanonicalCapacity translates a capacity label in any of the accepted
// spellings to its stored code.
func CanonicalCapacity(key string) (string, bool) {
	code, ok := capacityAliases[foldKey(key)]
	return code, ok
}

// domainCapacity infers a generic capacity from a workout energy domain.
func domainCapacity(domain string) string {
	d := foldKey(domain)
	switch {
	case strings.Contains(d, "fuerza"), strings.Contains(d, "strength"):
		return CapacityFuerza
	case strings.Contains(d, "resistencia"), strings.Contains(d, "endurance"):
		return CapacityResistencia
	case strings.Contains(d, "potencia"), strings.Contains(d, "power"):
		return CapacityPotencia
	default:
		return CapacityMetcon
	}
}
