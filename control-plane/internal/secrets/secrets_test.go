package secrets

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/1Password/connect-sdk-go/onepassword"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type mockVault struct {
	items map[string]*onepassword.Item
	err   error
	calls int
}

func (m *mockVault) GetItemsByTitle(title, vault string) ([]onepassword.Item, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if it, ok := m.items[title]; ok {
		return []onepassword.Item{{ID: it.ID, Title: title}}, nil
	}
	return nil, nil
}

func (m *mockVault) GetItem(id, vault string) (*onepassword.Item, error) {
	for _, it := range m.items {
		if it.ID == id {
			return it, nil
		}
	}
	return nil, errors.New("not found")
}

func TestOnePasswordSourceCachesToken(t *testing.T) {
	vault := &mockVault{items: map[string]*onepassword.Item{
		DefaultItemTitle: {ID: "item-1", Fields: []*onepassword.ItemField{
			{ID: "notesPlain", Value: "rotated monthly"},
			{ID: "credential", Label: "credential", Type: "CONCEALED", Value: " tok-123 "},
		}},
	}}
	src := newOnePasswordSource(vault, OnePasswordConfig{VaultID: "v"}, testLogger())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		tok, err := src.Token(context.Background())
		if err != nil || tok != "tok-123" {
			t.Fatalf("Token = %q, %v", tok, err)
		}
	}
	if vault.calls != 1 {
		t.Errorf("vault calls = %d, want 1", vault.calls)
	}

	// After the refresh interval a failing vault keeps the old token.
	now = now.Add(defaultRefresh)
	vault.err = errors.New("connect unavailable")
	if tok, err := src.Token(context.Background()); err != nil || tok != "tok-123" {
		t.Fatalf("Token after failed refresh = %q, %v", tok, err)
	}
}

func TestOnePasswordSourceMissingItem(t *testing.T) {
	src := newOnePasswordSource(&mockVault{}, OnePasswordConfig{VaultID: "v"}, testLogger())
	if _, err := src.Token(context.Background()); err == nil {
		t.Fatal("expected error for missing item")
	}
}

func TestTokenField(t *testing.T) {
	tests := []struct {
		name   string
		fields []*onepassword.ItemField
		want   string
	}{
		{"credential wins", []*onepassword.ItemField{
			{Purpose: "PASSWORD", Value: "pw"},
			{Label: "Credential", Value: "cred"},
		}, "cred"},
		{"password", []*onepassword.ItemField{
			{Type: "CONCEALED", Value: "hidden"},
			{Purpose: "PASSWORD", Value: "pw"},
		}, "pw"},
		{"concealed fallback", []*onepassword.ItemField{
			{Type: "STRING", Value: "visible"},
			{Type: "CONCEALED", Value: "hidden"},
		}, "hidden"},
		{"nothing", []*onepassword.ItemField{nil, {Type: "STRING", Value: "visible"}}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tokenField(&onepassword.Item{Fields: tt.fields}); got != tt.want {
				t.Errorf("tokenField = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFileSourceReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("first\n"), 0600); err != nil {
		t.Fatal(err)
	}

	src, err := NewFileSource(path, testLogger())
	if err != nil {
		t.Fatalf("NewFileSource: %v", err)
	}
	if tok, _ := src.Token(context.Background()); tok != "first" {
		t.Fatalf("Token = %q, want first", tok)
	}

	if err := os.WriteFile(path, []byte("second"), 0600); err != nil {
		t.Fatal(err)
	}
	later := time.Now().Add(time.Minute)
	if err := os.Chtimes(path, later, later); err != nil {
		t.Fatal(err)
	}
	if tok, _ := src.Token(context.Background()); tok != "second" {
		t.Fatalf("Token = %q, want second", tok)
	}
}

func TestNewTokenSource(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    string
		wantErr bool
	}{
		{"env", Config{Backend: "env", EnvToken: "abc"}, "abc", false},
		{"auto falls back to env", Config{EnvToken: "abc"}, "abc", false},
		{"auto with nothing", Config{}, "", false},
		{"1password incomplete", Config{Backend: "1password"}, "", true},
		{"file missing", Config{Backend: "file", TokenFile: "/nonexistent/token"}, "", true},
		{"unknown", Config{Backend: "vault"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewTokenSource(tt.cfg, testLogger())
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			got, err := src.Token(context.Background())
			if err != nil || got != tt.want {
				t.Errorf("Token = %q, %v; want %q", got, err, tt.want)
			}
		})
	}
}
