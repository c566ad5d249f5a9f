package quotes

import (
	"errors"
	"testing"

	"leadrelay/internal/config"
)

func TestRouter_Resolve(t *testing.T) {
	r := NewRouter(nil)

	tests := []struct {
		tag       string
		wantTable string
		wantErr   error
	}{
		{"auto", "auto_quotes", nil},
		{"  Auto ", "auto_quotes", nil},
		{"car", "auto_quotes", nil},
		{"Auto-Insurance", "auto_quotes", nil},
		{"home", "homeowners_quotes", nil},
		{"home insurance", "homeowners_quotes", nil},
		{"renters_insurance", "renters_quotes", nil},
		{"business", "commercial_quotes", nil},
		{"general", "contact_requests", nil},
		{"umbrella", "umbrella_quotes", nil},
		{"", "", ErrQuoteTypeRequired},
		{"   ", "", ErrQuoteTypeRequired},
		{"pet", "", ErrUnsupportedQuoteType},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			route, err := r.Resolve(tt.tag)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Resolve(%q) error = %v, want %v", tt.tag, err, tt.wantErr)
			}
			if route.Table != tt.wantTable {
				t.Errorf("Resolve(%q) table = %q, want %q", tt.tag, route.Table, tt.wantTable)
			}
		})
	}
}

func TestRouter_ExtraRoutes(t *testing.T) {
	r := NewRouter([]config.QuoteRouteConfig{
		{Type: "Pet", Table: "pet_quotes", Aliases: []string{"dog", "Cat Insurance"}},
		{Type: "auto", Table: "vehicle_leads"},
	})

	tests := map[string]string{
		"pet":           "pet_quotes",
		"dog":           "pet_quotes",
		"cat-insurance": "pet_quotes",
		"auto":          "vehicle_leads",
		"car":           "vehicle_leads",
	}
	for tag, want := range tests {
		route, err := r.Resolve(tag)
		if err != nil {
			t.Errorf("Resolve(%q) error = %v", tag, err)
			continue
		}
		if route.Table != want {
			t.Errorf("Resolve(%q) table = %q, want %q", tag, route.Table, want)
		}
	}
}

func TestRouter_TypesAndTables(t *testing.T) {
	r := NewRouter(nil)

	types := r.Types()
	if len(types) != len(DefaultRoutes) {
		t.Errorf("Types() = %v", types)
	}
	if types[0] != "auto" {
		t.Errorf("Types() not sorted: %v", types)
	}

	tables := r.Tables()
	if len(tables) != len(DefaultRoutes) {
		t.Errorf("Tables() = %v", tables)
	}
	for i := 1; i < len(tables); i++ {
		if tables[i-1] >= tables[i] {
			t.Errorf("Tables() not sorted: %v", tables)
			break
		}
	}
}
