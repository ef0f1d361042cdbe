package catalog

import (
	"errors"
	"testing"
)

func TestFindByID(t *testing.T) {
	idx := NewSeeded()

	item, err := idx.FindByID("top-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if item.Name != "Classic Cotton Tee" || item.PriceMinor != 15000 {
		t.Fatalf("unexpected item: %+v", item)
	}

	if _, err := idx.FindByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFindByBarcode(t *testing.T) {
	idx := NewSeeded()

	item, err := idx.FindByBarcode("JNS001")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if item.ID != "jeans-1" {
		t.Fatalf("expected jeans-1, got %s", item.ID)
	}

	if _, err := idx.FindByBarcode("NOPE999"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchIsCaseInsensitive(t *testing.T) {
	idx := NewSeeded()

	results := idx.Search("cotton TEE")
	if len(results) == 0 {
		t.Fatalf("expected results for name search")
	}

	byCategory := idx.Search("JEANS")
	if len(byCategory) != 2 {
		t.Fatalf("expected 2 jeans, got %d", len(byCategory))
	}
}

func TestListByCategory(t *testing.T) {
	idx := NewSeeded()

	all := idx.List("")
	if len(all) != 14 {
		t.Fatalf("expected 14 seeded items, got %d", len(all))
	}

	caps := idx.List("caps")
	if len(caps) != 2 {
		t.Fatalf("expected 2 caps, got %d", len(caps))
	}
}

func TestLookupReturnsCopies(t *testing.T) {
	idx := NewSeeded()

	item, err := idx.FindByID("top-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	item.Sizes[0] = "tampered"

	again, err := idx.FindByID("top-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if again.Sizes[0] != "S" {
		t.Fatalf("catalog state mutated through a returned copy")
	}
}
