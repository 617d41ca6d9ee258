package securelink

import "testing"

func TestExtractTokenFromQuery(t *testing.T) {
	m := &Manager{asQuery: true, queryKey: "state"}
	token, err := m.extractToken("https://mail.example.com/auth/callback?state=abc.def")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "abc.def" {
		t.Fatalf("expected abc.def, got %q", token)
	}
	if _, err := m.extractToken("https://mail.example.com/auth/callback"); err == nil {
		t.Fatalf("expected missing token error")
	}
}

func TestExtractTokenFromPath(t *testing.T) {
	m := &Manager{}
	token, err := m.extractToken("https://mail.example.com/auth/callback/abc.def/")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if token != "abc.def" {
		t.Fatalf("expected abc.def, got %q", token)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if _, err := m.Generate("oauth"); err == nil {
		t.Fatalf("expected error from nil manager")
	}
	if _, err := m.Validate("token"); err == nil {
		t.Fatalf("expected error from nil manager")
	}
	if m.GetExpiration() != 0 {
		t.Fatalf("expected zero expiration")
	}
}
