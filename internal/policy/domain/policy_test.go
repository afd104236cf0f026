package domain

import "testing"

func TestPolicy_Validate(t *testing.T) {
	p := &Policy{Name: "  owners  ", Rules: "package x"}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if p.Name != "owners" {
		t.Errorf("Name = %q, want trimmed", p.Name)
	}
	if err := (&Policy{Rules: "package x"}).Validate(); err == nil {
		t.Error("blank name should fail")
	}
	if err := (&Policy{Name: "x", Rules: " "}).Validate(); err == nil {
		t.Error("blank rules should fail")
	}
}
