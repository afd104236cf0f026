package domain

import (
	"testing"

	"tenantdesk/backend/internal/platform/apperr"
)

func TestOrg_Validate(t *testing.T) {
	testCases := []struct {
		name      string
		org       Org
		wantField string
	}{
		{"valid", Org{Name: " Acme ", Slug: "acme"}, ""},
		{"blank name", Org{Name: "  ", Slug: "acme"}, "name"},
		{"blank slug", Org{Name: "Acme"}, "slug"},
		{"bad slug", Org{Name: "Acme", Slug: "ac me"}, "slug"},
		{"slug with symbols", Org{Name: "Acme", Slug: "acme_inc-2"}, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.org.Validate()
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("Validate: %v", err)
				}
				return
			}
			ve, ok := apperr.AsValidation(err)
			if !ok || ve.Field != tc.wantField {
				t.Errorf("Validate err = %v, want field %q", err, tc.wantField)
			}
		})
	}
}

func TestOrg_ValidateTrims(t *testing.T) {
	o := Org{Name: " Acme ", Slug: " acme "}
	if err := o.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if o.Name != "Acme" || o.Slug != "acme" {
		t.Errorf("trimmed = %q %q", o.Name, o.Slug)
	}
}
