package flow

import (
	"testing"

	"github.com/mariahq/maria/internal/catalog"
)

func TestClassifyYesNo(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want YesNo
	}{
		{"sí", Yes},
		{"SI", Yes},
		{"si po", Yes},
		{"  Sí, es la primera", Yes},
		{"no", No},
		{"No sé", No},
		{"", No},
		{"claro", No},
	}
	for _, tc := range cases {
		if got := ClassifyYesNo(tc.in); got != tc.want {
			t.Errorf("ClassifyYesNo(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClassifyHomeType(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want HomeType
	}{
		{"casa", HomeHouse},
		{"una CASA en Maipú", HomeHouse},
		{"departamento", HomeApartment},
		{"depto", HomeApartment},
		{"", HomeApartment},
	}
	for _, tc := range cases {
		if got := ClassifyHomeType(tc.in); got != tc.want {
			t.Errorf("ClassifyHomeType(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestClassifyWorkerCategory(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in     string
		want   catalog.Category
		wantOK bool
	}{
		{"1", catalog.CategoryDependent, true},
		{"soy dependiente", catalog.CategoryDependent, true},
		{"DEPENDIENTE", catalog.CategoryDependent, true},
		{"2", catalog.CategoryIndependent, true},
		{"independiente", catalog.CategoryIndependent, true},
		{"trabajo como Independiente hace años", catalog.CategoryIndependent, true},
		{"3", catalog.CategoryPartner, true},
		{"socio empresa", catalog.CategoryPartner, true},
		{"Socio", catalog.CategoryPartner, true},
		{"no sé", "", false},
		{"", "", false},
		{"empleado", "", false},
	}
	for _, tc := range cases {
		got, ok := ClassifyWorkerCategory(tc.in)
		if got != tc.want || ok != tc.wantOK {
			t.Errorf("ClassifyWorkerCategory(%q) = (%q, %v), want (%q, %v)",
				tc.in, got, ok, tc.want, tc.wantOK)
		}
	}
}

func TestClassifyWorkerCategoryDeterministic(t *testing.T) {
	t.Parallel()
	// Same input must classify identically no matter the surrounding text.
	for range 10 {
		got, ok := ClassifyWorkerCategory("independiente")
		if !ok || got != catalog.CategoryIndependent {
			t.Fatalf("ClassifyWorkerCategory(independiente) = (%q, %v)", got, ok)
		}
	}
}
