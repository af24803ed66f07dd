package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test,")
	t.Setenv("PUBLIC_BASE_URL", "https://trattoria.test/")

	cfg := Load()
	if cfg.Port != ":9090" {
		t.Fatalf("expected port :9090, got %q", cfg.Port)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[1] != "http://b.test" {
		t.Fatalf("unexpected origins %v", cfg.CORSOrigins)
	}
	if cfg.PublicBaseURL != "https://trattoria.test" {
		t.Fatalf("trailing slash not trimmed: %q", cfg.PublicBaseURL)
	}
	if cfg.MongoDB != "trattoria" {
		t.Fatalf("expected default db name, got %q", cfg.MongoDB)
	}
	if cfg.TokenTTL.Hours() != 12 {
		t.Fatalf("expected 12h token ttl, got %v", cfg.TokenTTL)
	}
}

func TestInsecure(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want int
	}{
		{"defaults", nil, 3},
		{"secrets set", map[string]string{"JWT_SECRET": "s3cret-jwt", "TICKET_SECRET": "s3cret-ticket"}, 1},
		{"hardened", map[string]string{"JWT_SECRET": "s3cret-jwt", "TICKET_SECRET": "s3cret-ticket", "CORS_ORIGINS": "https://trattoria.test"}, 0},
		{"wildcard among origins", map[string]string{"JWT_SECRET": "a", "TICKET_SECRET": "b", "CORS_ORIGINS": "https://trattoria.test,*"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// empty values fall back to the defaults
			t.Setenv("JWT_SECRET", "")
			t.Setenv("TICKET_SECRET", "")
			t.Setenv("CORS_ORIGINS", "")
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if got := Load().Insecure(); len(got) != tc.want {
				t.Fatalf("got %v, want %d problems", got, tc.want)
			}
		})
	}
}
