package services

import (
	"context"
	"fmt"

	"catalog-importer/models"
	"catalog-importer/storage"
)

// CatalogService builds the public product listing from live pages under
// the listing root.
type CatalogService struct {
	store storage.CatalogStore
}

func NewCatalogService(store storage.CatalogStore) *CatalogService {
	return &CatalogService{store: store}
}

// Load returns live categories and products ordered by title. Products whose
// category is not live are left out. It fails with ErrPageNotFound when no
// live listing root exists.
func (s *CatalogService) Load(ctx context.Context) (*models.Catalog, error) {
	root, err := s.store.FindSingleton(ctx, models.KindListingRoot)
	if err != nil {
		return nil, fmt.Errorf("find listing root: %w", err)
	}
	if root == nil || !root.Live {
		return nil, fmt.Errorf("%w: no live listing root", models.ErrPageNotFound)
	}

	categories, err := s.store.ListLive(ctx, root, models.KindCategory)
	if err != nil {
		return nil, err
	}
	products, err := s.store.ListLive(ctx, root, models.KindProduct)
	if err != nil {
		return nil, err
	}

	catalog := &models.Catalog{
		Categories: make([]models.CatalogCategory, 0, len(categories)),
		Products:   make([]models.CatalogProduct, 0, len(products)),
	}
	titles := make(map[int64]string, len(categories))
	for _, c := range categories {
		titles[c.ID] = c.Title
		catalog.Categories = append(catalog.Categories, models.CatalogCategory{ID: c.ID, Title: c.Title, Slug: c.Slug})
	}
	for _, p := range products {
		category, ok := titles[p.ParentID]
		if !ok {
			continue
		}
		catalog.Products = append(catalog.Products, models.CatalogProduct{
			ID:          p.ID,
			Title:       p.Title,
			Price:       p.Price.StringFixed(2),
			Description: p.Description,
			SKU:         p.SKU,
			Category:    category,
		})
	}
	return catalog, nil
}
