package grader

// britishToAmerican is the fixed table of accepted regional spelling pairs.
// Matching is bidirectional: either spelling is accepted when the key holds
// the other, regardless of which side the key uses.
var britishToAmerican = map[string]string{
	"colour":     "color",
	"honour":     "honor",
	"favour":     "favor",
	"labour":     "labor",
	"neighbour":  "neighbor",
	"behaviour":  "behavior",
	"flavour":    "flavor",
	"harbour":    "harbor",
	"humour":     "humor",
	"rumour":     "rumor",
	"centre":     "center",
	"metre":      "meter",
	"theatre":    "theater",
	"fibre":      "fiber",
	"litre":      "liter",
	"defence":    "defense",
	"licence":    "license",
	"offence":    "offense",
	"pretence":   "pretense",
	"organise":   "organize",
	"realise":    "realize",
	"recognise":  "recognize",
	"analyse":    "analyze",
	"paralyse":   "paralyze",
	"travelled":  "traveled",
	"travelling": "traveling",
	"cancelled":  "canceled",
	"cancelling": "canceling",
	"jewellery":  "jewelry",
	"grey":       "gray",
	"fulfil":     "fulfill",
}

// IsVariantPair reports whether a and b are the two spellings of one
// equivalence class in the variant table. Inputs must already be normalized.
func IsVariantPair(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return britishToAmerican[a] == b || britishToAmerican[b] == a
}
