package providers

import "testing"

func TestLookup_CaseInsensitive(t *testing.T) {
	r := NewRegistry([]Provider{
		{AuthenticationType: "Google", DisplayName: "Google", LogoURL: "https://cdn.example.com/google.svg"},
		{AuthenticationType: "azuread", DisplayName: "AzureAD"},
	})

	for _, key := range []string{"google", "GOOGLE", "Google"} {
		p, ok := r.Lookup(key)
		if !ok {
			t.Fatalf("expected match for %q", key)
		}
		if p.LogoURL == "" {
			t.Fatalf("expected logo for %q", key)
		}
	}

	if _, ok := r.Lookup("github"); ok {
		t.Fatal("expected no match for unregistered provider")
	}
}

func TestNewRegistry_LaterDuplicateWins(t *testing.T) {
	r := NewRegistry([]Provider{
		{AuthenticationType: "google", DisplayName: "old"},
		{AuthenticationType: "GOOGLE", DisplayName: "new"},
	})
	p, ok := r.Lookup("google")
	if !ok || p.DisplayName != "new" {
		t.Fatalf("expected later duplicate to win, got %+v ok=%v", p, ok)
	}
}
