package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"catalog-importer/models"
	"catalog-importer/storage"
	"catalog-importer/utils"
)

const missingFieldReason = models.ReasonMissingField + " (product_category, product, or price)"

// Importer upserts category and product pages from import rows.
type Importer struct {
	store     storage.CatalogStore
	logger    *utils.Logger
	rootTitle string
}

// NewImporter creates an Importer writing through store. rootTitle names the
// listing root if the importer has to create it.
func NewImporter(store storage.CatalogStore, logger *utils.Logger, rootTitle string) *Importer {
	return &Importer{store: store, logger: logger, rootTitle: rootTitle}
}

// validRow is a row whose fields passed validation.
type validRow struct {
	category string
	product  string
	price    decimal.Decimal
	sku      string
}

// Import processes rows in order. Row failures are collected in the result;
// the returned error is reserved for failures that abort the whole run, in
// which case nothing is committed.
func (im *Importer) Import(ctx context.Context, rows []models.ImportRow, dryRun bool) (*models.Result, error) {
	if dryRun {
		return im.dryRun(ctx, rows)
	}

	result := &models.Result{}
	err := im.store.WithinTx(ctx, func(tx storage.CatalogStore) error {
		root, created, err := im.ensureRoot(ctx, tx)
		if err != nil {
			return err
		}
		result.RootCreated = created

		for _, row := range rows {
			im.importRow(ctx, tx, root, row, result)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	im.logger.Info("[importer] Import complete: created %d categories, %d products, updated %d products (%d errors)",
		result.CategoriesCreated, result.ProductsCreated, result.ProductsUpdated, len(result.Errors))
	return result, nil
}

// ensureRoot returns the listing root, creating it under the home page if
// it does not exist yet.
func (im *Importer) ensureRoot(ctx context.Context, tx storage.CatalogStore) (*models.Page, bool, error) {
	root, err := tx.FindSingleton(ctx, models.KindListingRoot)
	if err != nil {
		return nil, false, fmt.Errorf("find listing root: %w", err)
	}
	if root != nil {
		if !root.Live {
			return nil, false, fmt.Errorf("%w: listing root %q", models.ErrPageNotLive, root.Title)
		}
		return root, false, nil
	}

	home, err := im.findHome(ctx, tx)
	if err != nil {
		return nil, false, err
	}

	root = &models.Page{
		Kind:  models.KindListingRoot,
		Title: im.rootTitle,
		Slug:  CategorySlug(im.rootTitle),
		Live:  true,
	}
	if err := tx.CreateChild(ctx, home, root); err != nil {
		return nil, false, fmt.Errorf("create listing root: %w", err)
	}
	im.logger.Info("[importer] Created listing root %q", root.Title)
	return root, true, nil
}

func (im *Importer) findHome(ctx context.Context, store storage.CatalogStore) (*models.Page, error) {
	home, err := store.FindSingleton(ctx, models.KindHome)
	if err != nil {
		return nil, fmt.Errorf("find home page: %w", err)
	}
	if home == nil {
		return nil, models.ErrNoHomePage
	}
	if !home.Live {
		return nil, fmt.Errorf("%w: home page %q is not live", models.ErrNoHomePage, home.Title)
	}
	return home, nil
}

func (im *Importer) importRow(ctx context.Context, tx storage.CatalogStore, root *models.Page, row models.ImportRow, result *models.Result) {
	outcome := models.RowOutcome{Row: row}
	v, rowErr := validate(row)
	if rowErr != nil {
		im.fail(result, outcome, rowErr)
		return
	}
	outcome.Price = v.price

	// The row runs in its own savepoint so a failure after the category was
	// created leaves neither the category nor its counter behind.
	err := tx.WithinTx(ctx, func(rowTx storage.CatalogStore) error {
		category, err := rowTx.FindChildByTitle(ctx, root, models.KindCategory, v.category)
		if err != nil {
			return err
		}
		outcome.CategoryAction = models.ActionResolved
		if category == nil {
			category = &models.Page{
				Kind:  models.KindCategory,
				Title: v.category,
				Slug:  CategorySlug(v.category),
				Live:  true,
			}
			if err := rowTx.CreateChild(ctx, root, category); err != nil {
				return fmt.Errorf("create category %q: %w", v.category, err)
			}
			outcome.CategoryAction = models.ActionCreated
		}

		product, err := rowTx.FindChildByTitle(ctx, category, models.KindProduct, v.product)
		if err != nil {
			return err
		}
		if product != nil {
			if err := rowTx.UpdatePrice(ctx, product, v.price); err != nil {
				return err
			}
			outcome.ProductAction = models.ActionUpdated
			return nil
		}

		product = &models.Page{
			Kind:        models.KindProduct,
			Title:       v.product,
			Slug:        ProductSlug(v.product),
			Price:       v.price,
			Description: DefaultDescription(v.product),
			SKU:         v.sku,
			Live:        true,
		}
		if err := rowTx.CreateChild(ctx, category, product); err != nil {
			return fmt.Errorf("create product %q: %w", v.product, err)
		}
		outcome.ProductAction = models.ActionCreated
		return nil
	})
	if err != nil {
		im.fail(result, models.RowOutcome{Row: row}, &models.RowError{Row: row.Row, Reason: err.Error(), Err: err})
		return
	}

	im.succeed(result, outcome)
}

// dryRun resolves every row against the store without writing. Names that a
// real run would create earlier in the same input are tracked so later rows
// report them the way a real run would.
func (im *Importer) dryRun(ctx context.Context, rows []models.ImportRow) (*models.Result, error) {
	result := &models.Result{DryRun: true}

	root, err := im.store.FindSingleton(ctx, models.KindListingRoot)
	if err != nil {
		return nil, fmt.Errorf("find listing root: %w", err)
	}
	switch {
	case root == nil:
		if _, err := im.findHome(ctx, im.store); err != nil {
			return nil, err
		}
		result.RootCreated = true
	case !root.Live:
		return nil, fmt.Errorf("%w: listing root %q", models.ErrPageNotLive, root.Title)
	}

	pendingCategories := utils.NewKeySet()
	pendingProducts := utils.NewKeySet()

	for _, row := range rows {
		outcome := models.RowOutcome{Row: row}
		v, rowErr := validate(row)
		if rowErr != nil {
			im.fail(result, outcome, rowErr)
			continue
		}
		outcome.Price = v.price

		var category *models.Page
		if root != nil {
			category, err = im.store.FindChildByTitle(ctx, root, models.KindCategory, v.category)
			if err != nil {
				im.fail(result, outcome, &models.RowError{Row: row.Row, Reason: err.Error(), Err: err})
				continue
			}
		}

		var product *models.Page
		if category != nil {
			outcome.CategoryAction = models.ActionResolved
			product, err = im.store.FindChildByTitle(ctx, category, models.KindProduct, v.product)
			if err != nil {
				im.fail(result, outcome, &models.RowError{Row: row.Row, Reason: err.Error(), Err: err})
				continue
			}
		} else if pendingCategories.Add(utils.Key(v.category)) {
			outcome.CategoryAction = models.ActionWouldCreate
		} else {
			outcome.CategoryAction = models.ActionResolved
		}

		if product != nil || !pendingProducts.Add(utils.Key(v.category, v.product)) {
			outcome.ProductAction = models.ActionWouldUpdate
		} else {
			outcome.ProductAction = models.ActionWouldCreate
		}

		im.logger.Info("[importer] Would import: %s (%s) - $%s", v.product, v.category, v.price.StringFixed(2))
		im.succeed(result, outcome)
	}

	im.logger.Info("[importer] Dry run complete: would create %d categories, %d products, update %d products (%d errors)",
		pendingCategories.Size(), result.ProductsCreated, result.ProductsUpdated, len(result.Errors))
	return result, nil
}

func (im *Importer) succeed(result *models.Result, outcome models.RowOutcome) {
	switch outcome.CategoryAction {
	case models.ActionCreated, models.ActionWouldCreate:
		result.CategoriesCreated++
		im.logger.Debug("[importer] Row %d: category %q %s", outcome.Row.Row, outcome.Row.CategoryName, outcome.CategoryAction)
	}
	switch outcome.ProductAction {
	case models.ActionCreated, models.ActionWouldCreate:
		result.ProductsCreated++
	case models.ActionUpdated, models.ActionWouldUpdate:
		result.ProductsUpdated++
	}
	im.logger.Debug("[importer] Row %d: product %q %s", outcome.Row.Row, outcome.Row.ProductName, outcome.ProductAction)
	result.Outcomes = append(result.Outcomes, outcome)
}

func (im *Importer) fail(result *models.Result, outcome models.RowOutcome, rowErr *models.RowError) {
	im.logger.Warn("[importer] %s", rowErr.Error())
	outcome.Err = rowErr
	outcome.CategoryAction = models.ActionNone
	outcome.ProductAction = models.ActionError
	result.Errors = append(result.Errors, rowErr)
	result.Outcomes = append(result.Outcomes, outcome)
}

// validate trims the row's fields and parses its price. It runs before any
// lookup so an invalid row never creates a category.
func validate(row models.ImportRow) (validRow, *models.RowError) {
	if row.Malformed != "" {
		return validRow{}, &models.RowError{Row: row.Row, Reason: models.ReasonMalformedRecord + ": " + row.Malformed}
	}

	category := strings.TrimSpace(row.CategoryName)
	product := strings.TrimSpace(row.ProductName)
	priceText := strings.TrimSpace(row.PriceText)

	if category == "" || product == "" || priceText == "" {
		return validRow{}, &models.RowError{Row: row.Row, Reason: missingFieldReason}
	}

	price, err := ParsePrice(priceText)
	if err != nil {
		return validRow{}, &models.RowError{Row: row.Row, Reason: err.Error(), Err: err}
	}
	sku := strings.TrimSpace(row.SKU)
	if len(sku) > models.MaxSKULength {
		return validRow{}, &models.RowError{Row: row.Row, Reason: models.ReasonSKUTooLong}
	}
	return validRow{category: category, product: product, price: price, sku: sku}, nil
}
