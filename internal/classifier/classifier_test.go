package classifier

import (
	"context"
	"testing"
)

func TestMatchCandidate(t *testing.T) {
	candidates := []string{"Vendas", "Suporte", "Cancelamentos"}

	cases := []struct {
		answer   string
		expected string
	}{
		{"Suporte", "Suporte"},
		{"suporte", "Suporte"},
		{" Cancelamentos. ", "Cancelamentos"},
		{`"Vendas"`, "Vendas"},
		{NotIdentified, NotIdentified},
		{"Acho que talvez Suporte", NotIdentified},
		{"Financeiro", NotIdentified},
		{"", NotIdentified},
	}
	for _, tc := range cases {
		if got := matchCandidate(tc.answer, candidates); got != tc.expected {
			t.Fatalf("matchCandidate(%q) = %q, want %q", tc.answer, got, tc.expected)
		}
	}
}

func TestDisabled_AlwaysNotIdentified(t *testing.T) {
	var c Disabled
	if got := c.Identify(context.Background(), "quero cancelar", []string{"Cancelamentos"}); got != NotIdentified {
		t.Fatalf("expected sentinel, got %q", got)
	}
}
