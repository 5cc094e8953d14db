package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"catalog-importer/models"
)

// MemoryStore keeps the page tree in process. It applies the same tree rules
// as PostgresStore and is meant for tests and throwaway runs. Transactions
// are snapshot based and assume a single writer.
type MemoryStore struct {
	mu     sync.Mutex
	nextID int64
	pages  []models.Page
	now    func() time.Time
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) FindSingleton(_ context.Context, kind models.PageKind) (*models.Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.findKind(kind), nil
}

func (m *MemoryStore) findKind(kind models.PageKind) *models.Page {
	for i := range m.pages {
		if m.pages[i].Kind == kind {
			p := m.pages[i]
			return &p
		}
	}
	return nil
}

func (m *MemoryStore) FindChildByTitle(_ context.Context, parent *models.Page, kind models.PageKind, title string) (*models.Page, error) {
	if parent == nil {
		return nil, fmt.Errorf("memory: find %s %q: nil parent", kind, title)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.pages {
		p := m.pages[i]
		if p.Kind != kind || p.Title != title {
			continue
		}
		if p.Path != parent.Path && strings.HasPrefix(p.Path, parent.Path) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStore) ListLive(_ context.Context, parent *models.Page, kind models.PageKind) ([]models.Page, error) {
	if parent == nil {
		return nil, fmt.Errorf("memory: list %s: nil parent", kind)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Page
	for _, p := range m.pages {
		if p.Kind == kind && p.Live && p.Path != parent.Path && strings.HasPrefix(p.Path, parent.Path) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out, nil
}

func (m *MemoryStore) CreateChild(_ context.Context, parent *models.Page, page *models.Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	parentPath := ""
	var parentID int64
	if parent != nil {
		stored := m.byID(parent.ID)
		if stored == nil {
			return fmt.Errorf("memory: create %s: parent %d: %w", page.Kind, parent.ID, models.ErrPageNotFound)
		}
		parentPath = stored.Path
		parentID = stored.ID
		parent = stored
	}

	var existing *models.Page
	if page.Kind.IsSingleton() {
		existing = m.findKind(page.Kind)
	}
	if err := checkCreate(parent, page, existing); err != nil {
		return err
	}
	m.nextID++
	now := m.now()
	page.ID = m.nextID
	page.ParentID = parentID
	page.Path = childPath(parentPath, page.ID)
	page.CreatedAt = now
	page.UpdatedAt = now
	m.pages = append(m.pages, *page)
	return nil
}

func (m *MemoryStore) UpdatePrice(_ context.Context, page *models.Page, price decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.byID(page.ID)
	if stored == nil {
		return fmt.Errorf("memory: update price of %d: %w", page.ID, models.ErrPageNotFound)
	}
	stored.Price = price
	stored.UpdatedAt = m.now()
	page.Price = price
	page.UpdatedAt = stored.UpdatedAt
	return nil
}

// WithinTx snapshots the tree and restores it if fn fails.
func (m *MemoryStore) WithinTx(_ context.Context, fn func(tx CatalogStore) error) error {
	m.mu.Lock()
	snapshot := append([]models.Page(nil), m.pages...)
	nextID := m.nextID
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.pages = snapshot
		m.nextID = nextID
		m.mu.Unlock()
		return err
	}
	return nil
}

// Pages returns a copy of every stored page in creation order.
func (m *MemoryStore) Pages() []models.Page {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Page(nil), m.pages...)
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) byID(id int64) *models.Page {
	for i := range m.pages {
		if m.pages[i].ID == id {
			return &m.pages[i]
		}
	}
	return nil
}
