package flow

import (
	"strings"

	"github.com/mariahq/maria/internal/catalog"
)

// YesNo is the first-home classification. There is no unrecognized variant:
// anything not starting with "s" counts as no.
type YesNo int

const (
	No YesNo = iota
	Yes
)

// ClassifyYesNo maps an answer to Yes when it starts with "s" or "S"
// ("sí", "SI", "si po"), No otherwise.
func ClassifyYesNo(text string) YesNo {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return No
	}
	if trimmed[0] == 's' || trimmed[0] == 'S' {
		return Yes
	}
	return No
}

// HomeType is the property-type classification.
type HomeType string

const (
	HomeHouse     HomeType = "casa"
	HomeApartment HomeType = "departamento"
)

// ClassifyHomeType maps any text containing "casa" (case-insensitive) to
// house, everything else to apartment.
func ClassifyHomeType(text string) HomeType {
	if strings.Contains(strings.ToLower(text), "casa") {
		return HomeHouse
	}
	return HomeApartment
}

// ClassifyWorkerCategory matches the answer against the menu options by
// case-insensitive substring: "1"/"depend" for dependent, "2"/"independ" for
// independent, "3"/"socio" for business partner. The independent patterns
// are checked first so "independiente" is not swallowed by "depend". The
// second return is false when nothing matches; the caller re-prompts and
// stays in state.
func ClassifyWorkerCategory(text string) (catalog.Category, bool) {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "independ"), strings.Contains(lower, "2"):
		return catalog.CategoryIndependent, true
	case strings.Contains(lower, "depend"), strings.Contains(lower, "1"):
		return catalog.CategoryDependent, true
	case strings.Contains(lower, "socio"), strings.Contains(lower, "3"):
		return catalog.CategoryPartner, true
	default:
		return "", false
	}
}
