package catalog

import (
	"errors"
	"strings"
	"sync"

	"diffpos/backend/internal/domain"
)

var ErrNotFound = errors.New("catalog item not found")

// Index is the read-only catalog lookup the checkout engine consumes. The
// engine never mutates the catalog within a sale.
type Index interface {
	FindByID(id string) (domain.CatalogItem, error)
	FindByBarcode(code string) (domain.CatalogItem, error)
	Search(query string) []domain.CatalogItem
	List(category string) []domain.CatalogItem
}

// MemoryIndex is a seeded in-memory catalog for dev and test deployments.
type MemoryIndex struct {
	mu        sync.RWMutex
	byID      map[string]domain.CatalogItem
	byBarcode map[string]domain.CatalogItem
	ordered   []string
}

func NewMemoryIndex(items []domain.CatalogItem) *MemoryIndex {
	idx := &MemoryIndex{
		byID:      make(map[string]domain.CatalogItem, len(items)),
		byBarcode: make(map[string]domain.CatalogItem, len(items)),
		ordered:   make([]string, 0, len(items)),
	}
	for _, item := range items {
		if item.ID == "" {
			continue
		}
		idx.byID[item.ID] = item
		if item.Barcode != "" {
			idx.byBarcode[item.Barcode] = item
		}
		idx.ordered = append(idx.ordered, item.ID)
	}
	return idx
}

func NewSeeded() *MemoryIndex {
	return NewMemoryIndex(seedItems())
}

func (m *MemoryIndex) FindByID(id string) (domain.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.byID[id]
	if !ok {
		return domain.CatalogItem{}, ErrNotFound
	}
	return cloneItem(item), nil
}

func (m *MemoryIndex) FindByBarcode(code string) (domain.CatalogItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.byBarcode[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return domain.CatalogItem{}, ErrNotFound
	}
	return cloneItem(item), nil
}

// Search matches the query against name, category and barcode,
// case-insensitively.
func (m *MemoryIndex) Search(query string) []domain.CatalogItem {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return m.List("")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.CatalogItem, 0, 16)
	for _, id := range m.ordered {
		item := m.byID[id]
		if strings.Contains(strings.ToLower(item.Name), query) ||
			strings.Contains(strings.ToLower(item.Category), query) ||
			strings.Contains(strings.ToLower(item.Barcode), query) {
			result = append(result, cloneItem(item))
		}
	}
	return result
}

func (m *MemoryIndex) List(category string) []domain.CatalogItem {
	category = strings.ToLower(strings.TrimSpace(category))

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]domain.CatalogItem, 0, len(m.ordered))
	for _, id := range m.ordered {
		item := m.byID[id]
		if category != "" && strings.ToLower(item.Category) != category {
			continue
		}
		result = append(result, cloneItem(item))
	}
	return result
}

func cloneItem(src domain.CatalogItem) domain.CatalogItem {
	dup := src
	dup.Sizes = append([]string(nil), src.Sizes...)
	dup.Colors = append([]string(nil), src.Colors...)
	return dup
}

func seedItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{ID: "top-1", Name: "Classic Cotton Tee", Category: "tops", PriceMinor: 15000, Sizes: []string{"S", "M", "L", "XL"}, Colors: []string{"Black", "White", "Navy"}, Stock: 50, Barcode: "TOP001"},
		{ID: "top-2", Name: "Premium Polo Shirt", Category: "tops", PriceMinor: 25000, Sizes: []string{"S", "M", "L", "XL", "XXL"}, Colors: []string{"White", "Black", "Red"}, Stock: 35, Barcode: "TOP002"},
		{ID: "top-3", Name: "Graphic Print Tee", Category: "tops", PriceMinor: 18000, Sizes: []string{"S", "M", "L"}, Colors: []string{"Black", "Grey"}, Stock: 40, Barcode: "TOP003"},
		{ID: "top-4", Name: "V-Neck Essential", Category: "tops", PriceMinor: 12000, Sizes: []string{"S", "M", "L", "XL"}, Colors: []string{"White", "Black", "Navy", "Grey"}, Stock: 60, Barcode: "TOP004"},
		{ID: "shirt-1", Name: "Oxford Button Down", Category: "shirts", PriceMinor: 35000, Sizes: []string{"S", "M", "L", "XL"}, Colors: []string{"White", "Blue", "Pink"}, Stock: 30, Barcode: "SHT001"},
		{ID: "shirt-2", Name: "Slim Fit Dress Shirt", Category: "shirts", PriceMinor: 42000, Sizes: []string{"S", "M", "L", "XL"}, Colors: []string{"White", "Black", "Navy"}, Stock: 25, Barcode: "SHT002"},
		{ID: "pants-1", Name: "Chino Trousers", Category: "pants", PriceMinor: 38000, Sizes: []string{"30", "32", "34", "36"}, Colors: []string{"Khaki", "Navy", "Black"}, Stock: 28, Barcode: "PNT001"},
		{ID: "pants-2", Name: "Formal Dress Pants", Category: "pants", PriceMinor: 45000, Sizes: []string{"30", "32", "34", "36", "38"}, Colors: []string{"Black", "Grey", "Navy"}, Stock: 22, Barcode: "PNT002"},
		{ID: "jeans-1", Name: "Slim Fit Jeans", Category: "jeans", PriceMinor: 48000, Sizes: []string{"30", "32", "34", "36"}, Colors: []string{"Blue", "Black"}, Stock: 32, Barcode: "JNS001"},
		{ID: "jeans-2", Name: "Straight Cut Denim", Category: "jeans", PriceMinor: 52000, Sizes: []string{"30", "32", "34", "36", "38"}, Colors: []string{"Light Blue", "Dark Blue"}, Stock: 26, Barcode: "JNS002"},
		{ID: "bag-1", Name: "Leather Tote Bag", Category: "bags", PriceMinor: 65000, Sizes: []string{"One Size"}, Colors: []string{"Brown", "Black"}, Stock: 15, Barcode: "BAG001"},
		{ID: "bag-2", Name: "Canvas Backpack", Category: "bags", PriceMinor: 42000, Sizes: []string{"One Size"}, Colors: []string{"Olive", "Black", "Navy"}, Stock: 20, Barcode: "BAG002"},
		{ID: "cap-1", Name: "Classic Baseball Cap", Category: "caps", PriceMinor: 9500, Sizes: []string{"One Size"}, Colors: []string{"Black", "Navy", "Red", "White"}, Stock: 45, Barcode: "CAP001"},
		{ID: "cap-2", Name: "Snapback Cap", Category: "caps", PriceMinor: 12000, Sizes: []string{"One Size"}, Colors: []string{"Black", "Grey"}, Stock: 38, Barcode: "CAP002"},
	}
}
