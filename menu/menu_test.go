package menu

import (
	"testing"

	"trattoria/models"
)

func TestForLocation(t *testing.T) {
	items := []models.MenuItem{
		{ID: "a", Price: 10, Locations: []models.LocationPrice{{Location: "downtown", Price: 12, Available: true}}},
		{ID: "b", Price: 8, Locations: []models.LocationPrice{{Location: "downtown", Price: 8, Available: false}}},
		{ID: "c", Price: 5},
	}

	all := ForLocation(items, "")
	if len(all) != 3 || all[0].Price != 10 {
		t.Fatalf("no location should keep everything unchanged: %+v", all)
	}

	down := ForLocation(items, "downtown")
	if len(down) != 2 {
		t.Fatalf("expected two items downtown, got %+v", down)
	}
	if down[0].ID != "a" || down[0].Price != 12 {
		t.Fatalf("location price not applied: %+v", down[0])
	}
	if down[1].ID != "c" || down[1].Price != 5 {
		t.Fatalf("item without overrides should keep base price: %+v", down[1])
	}
	if items[0].Price != 10 {
		t.Fatal("input slice was mutated")
	}
}

func TestCheckItem(t *testing.T) {
	tests := []struct {
		name string
		item models.MenuItem
		ok   bool
	}{
		{"valid", models.MenuItem{Name: "Pizza", Category: "mains", Price: 10, DiscountPrice: 8}, true},
		{"missing name", models.MenuItem{Category: "mains", Price: 10}, false},
		{"zero price", models.MenuItem{Name: "Pizza", Category: "mains"}, false},
		{"discount above price", models.MenuItem{Name: "Pizza", Category: "mains", Price: 10, DiscountPrice: 11}, false},
		{"rating out of range", models.MenuItem{Name: "Pizza", Category: "mains", Price: 10, Rating: 6}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := checkItem(&tc.item)
			if (err == nil) != tc.ok {
				t.Fatalf("got %v", err)
			}
		})
	}
}

func TestCacheKey(t *testing.T) {
	if cacheKey("") != "menu:all" || cacheKey("drinks") != "menu:cat:drinks" {
		t.Fatal("unexpected cache keys")
	}
}

func TestSearch(t *testing.T) {
	items := []models.MenuItem{
		{ID: "a", Name: "Margherita", Description: "tomato, basil"},
		{ID: "b", Name: "Carbonara", Description: "Guanciale and pecorino"},
		{ID: "c", Name: "Tiramisu"},
	}
	tests := []struct {
		term string
		want []string
	}{
		{"", []string{"a", "b", "c"}},
		{"MARG", []string{"a"}},
		{"pecorino", []string{"b"}},
		{"a", []string{"a", "b", "c"}},
		{"risotto", nil},
	}
	for _, tc := range tests {
		got := Search(items, tc.term)
		if len(got) != len(tc.want) {
			t.Fatalf("Search(%q) = %d items, want %d", tc.term, len(got), len(tc.want))
		}
		for i := range got {
			if got[i].ID != tc.want[i] {
				t.Fatalf("Search(%q)[%d] = %s, want %s", tc.term, i, got[i].ID, tc.want[i])
			}
		}
	}
}
