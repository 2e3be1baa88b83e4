// Package catalog maps worker categories to the documents a contact must
// submit before the intake flow can close.
package catalog

// Category classifies the contact's employment situation.
type Category string

const (
	CategoryDependent   Category = "dependiente"
	CategoryIndependent Category = "independiente"
	CategoryPartner     Category = "socio empresa"
)

// requiredDocuments is fixed for the process lifetime. Order matters: the
// checklist is presented to the contact in this order.
var requiredDocuments = map[Category][]string{
	CategoryDependent: {
		"3 últimas liquidaciones de sueldo",
		"Certificado de antigüedad laboral",
		"Cotizaciones AFP (últimos 12 meses)",
	},
	CategoryIndependent: {
		"2 últimas declaraciones de renta",
		"IVA (últimos 6 meses)",
		"Certificado de inicio de actividades",
	},
	CategoryPartner: {
		"Declaraciones de renta empresa y personal",
		"Escritura de constitución",
		"Certificado de vigencia de sociedad",
	},
}

// RequiredDocuments returns the ordered checklist for the category, or nil
// for an unknown category.
func RequiredDocuments(c Category) []string {
	docs, ok := requiredDocuments[c]
	if !ok {
		return nil
	}
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}

// RequiredCount returns how many documents the category needs. Completion is
// checked against this count only; which labels were satisfied by which
// upload is not tracked.
func RequiredCount(c Category) int {
	return len(requiredDocuments[c])
}
