package catalog

import "testing"

func TestRequiredDocumentsOrder(t *testing.T) {
	t.Parallel()
	docs := RequiredDocuments(CategoryIndependent)
	if len(docs) != 3 {
		t.Fatalf("RequiredDocuments(independiente) returned %d labels, want 3", len(docs))
	}
	if docs[0] != "2 últimas declaraciones de renta" {
		t.Fatalf("first label = %q", docs[0])
	}
	if docs[2] != "Certificado de inicio de actividades" {
		t.Fatalf("last label = %q", docs[2])
	}
}

func TestRequiredDocumentsCopies(t *testing.T) {
	t.Parallel()
	docs := RequiredDocuments(CategoryDependent)
	docs[0] = "mutated"
	if RequiredDocuments(CategoryDependent)[0] == "mutated" {
		t.Fatal("RequiredDocuments must return a copy")
	}
}

func TestRequiredCount(t *testing.T) {
	t.Parallel()
	for _, c := range []Category{CategoryDependent, CategoryIndependent, CategoryPartner} {
		if got := RequiredCount(c); got != 3 {
			t.Fatalf("RequiredCount(%s) = %d, want 3", c, got)
		}
	}
	if got := RequiredCount(Category("unknown")); got != 0 {
		t.Fatalf("RequiredCount(unknown) = %d, want 0", got)
	}
}
