package services

import (
	"context"
	"fmt"

	"catalog-importer/models"
	"catalog-importer/storage"
)

// EnsureHome returns the home page, creating it live with title if the store
// has none. An existing home page is returned as is, live or not. The boolean
// reports whether it was created.
func EnsureHome(ctx context.Context, store storage.CatalogStore, title string) (*models.Page, bool, error) {
	home, err := store.FindSingleton(ctx, models.KindHome)
	if err != nil {
		return nil, false, fmt.Errorf("find home page: %w", err)
	}
	if home != nil {
		return home, false, nil
	}

	home = &models.Page{Kind: models.KindHome, Title: title, Slug: CategorySlug(title), Live: true}
	if err := store.CreateChild(ctx, nil, home); err != nil {
		return nil, false, fmt.Errorf("create home page: %w", err)
	}
	return home, true, nil
}
