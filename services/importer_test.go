package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"catalog-importer/models"
	"catalog-importer/storage"
	"catalog-importer/utils"
)

func newSeededStore(t *testing.T) *storage.MemoryStore {
	t.Helper()
	store := storage.NewMemoryStore()
	home := &models.Page{Kind: models.KindHome, Title: "Home", Slug: "home", Live: true}
	require.NoError(t, store.CreateChild(context.Background(), nil, home))
	return store
}

func newTestImporter(store storage.CatalogStore) *Importer {
	return NewImporter(store, utils.Discard(), "Products")
}

func rows(records ...[3]string) []models.ImportRow {
	out := make([]models.ImportRow, len(records))
	for i, r := range records {
		out[i] = models.ImportRow{Row: i + 2, CategoryName: r[0], ProductName: r[1], PriceText: r[2]}
	}
	return out
}

func pagesOfKind(store *storage.MemoryStore, kind models.PageKind) []models.Page {
	var out []models.Page
	for _, p := range store.Pages() {
		if p.Kind == kind {
			out = append(out, p)
		}
	}
	return out
}

func TestImportCreatesHierarchy(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	res, err := im.Import(context.Background(), rows(
		[3]string{"Racks", "Rack A", "19.99"},
		[3]string{"Racks", "Rack B", "25.00"},
		[3]string{"Shelves", "Shelf A", "bad"},
	), false)
	require.NoError(t, err)

	assert.True(t, res.RootCreated)
	assert.Equal(t, 1, res.CategoriesCreated, "Shelves must not be created for a row with an invalid price")
	assert.Equal(t, 2, res.ProductsCreated)
	assert.Equal(t, 0, res.ProductsUpdated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Error(), "invalid price")

	roots := pagesOfKind(store, models.KindListingRoot)
	require.Len(t, roots, 1)
	assert.Equal(t, "products", roots[0].Slug)

	categories := pagesOfKind(store, models.KindCategory)
	require.Len(t, categories, 1)
	assert.Equal(t, "Racks", categories[0].Title)
	assert.Equal(t, roots[0].ID, categories[0].ParentID)

	products := pagesOfKind(store, models.KindProduct)
	require.Len(t, products, 2)
	assert.Equal(t, "rack-a", products[0].Slug)
	assert.Equal(t, "Product: Rack A", products[0].Description)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("19.99")))
	assert.Equal(t, categories[0].ID, products[1].ParentID)
}

func TestImportIsIdempotentOnPrices(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)
	input := rows(
		[3]string{"Racks", "Rack A", "19.99"},
		[3]string{"Racks", "Rack B", "25.00"},
		[3]string{"Benches", "Bench/Long", "300"},
	)

	first, err := im.Import(context.Background(), input, false)
	require.NoError(t, err)
	assert.Equal(t, 2, first.CategoriesCreated)
	assert.Equal(t, 3, first.ProductsCreated)
	before := pagesOfKind(store, models.KindProduct)

	second, err := im.Import(context.Background(), input, false)
	require.NoError(t, err)
	assert.False(t, second.RootCreated)
	assert.Equal(t, 0, second.CategoriesCreated)
	assert.Equal(t, 0, second.ProductsCreated)
	assert.Equal(t, 3, second.ProductsUpdated)
	assert.Empty(t, second.Errors)

	after := pagesOfKind(store, models.KindProduct)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ID, after[i].ID)
		assert.True(t, before[i].Price.Equal(after[i].Price), "price of %s changed", before[i].Title)
	}
}

func TestImportUpdatesPriceInPlace(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	_, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "19.99"}), false)
	require.NoError(t, err)

	res, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "21.50"}), false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProductsUpdated)

	products := pagesOfKind(store, models.KindProduct)
	require.Len(t, products, 1)
	assert.Equal(t, "21.50", products[0].Price.StringFixed(2))
}

func TestImportMissingFieldCreatesNothing(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	res, err := im.Import(context.Background(), rows(
		[3]string{"Racks", "Rack A", ""},
		[3]string{"  ", "Rack B", "10"},
		[3]string{"Racks", "   ", "10"},
	), false)
	require.NoError(t, err)

	require.Len(t, res.Errors, 3)
	for i, e := range res.Errors {
		assert.Equal(t, i+2, e.Row)
		assert.Contains(t, e.Error(), "missing required field")
	}
	assert.Empty(t, pagesOfKind(store, models.KindCategory))
	assert.Empty(t, pagesOfKind(store, models.KindProduct))
}

func TestImportInvalidPriceDoesNotMutate(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	_, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "19.99"}), false)
	require.NoError(t, err)

	res, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "abc"}), false)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0].Error(), "invalid price")
	assert.Equal(t, 0, res.ProductsUpdated)

	products := pagesOfKind(store, models.KindProduct)
	require.Len(t, products, 1)
	assert.Equal(t, "19.99", products[0].Price.StringFixed(2))
}

func TestImportMatchesTitlesCaseSensitively(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	res, err := im.Import(context.Background(), rows(
		[3]string{"Racks", "Rack A", "1"},
		[3]string{"racks", "Rack A", "2"},
		[3]string{"Racks", "rack a", "3"},
	), false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.CategoriesCreated)
	assert.Equal(t, 3, res.ProductsCreated)
	assert.Equal(t, 0, res.ProductsUpdated)
}

func TestImportResolvesExistingCategory(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)

	_, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "1"}), false)
	require.NoError(t, err)

	res, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack C", "5"}), false)
	require.NoError(t, err)
	assert.Equal(t, 0, res.CategoriesCreated)
	assert.Equal(t, 1, res.ProductsCreated)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, models.ActionResolved, res.Outcomes[0].CategoryAction)
	assert.Len(t, pagesOfKind(store, models.KindCategory), 1)
}

func TestImportWithoutHomeIsFatal(t *testing.T) {
	store := storage.NewMemoryStore()
	im := newTestImporter(store)

	res, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "1"}), false)
	require.ErrorIs(t, err, models.ErrNoHomePage)
	assert.Nil(t, res)
	assert.True(t, models.IsFatal(err))
	assert.Empty(t, store.Pages())
}

func TestImportReusesExistingRoot(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	home, err := store.FindSingleton(ctx, models.KindHome)
	require.NoError(t, err)
	root := &models.Page{Kind: models.KindListingRoot, Title: "Shop", Slug: "shop", Live: true}
	require.NoError(t, store.CreateChild(ctx, home, root))

	res, err := newTestImporter(store).Import(ctx, rows([3]string{"Racks", "Rack A", "1"}), false)
	require.NoError(t, err)
	assert.False(t, res.RootCreated)
	assert.Len(t, pagesOfKind(store, models.KindListingRoot), 1)

	categories := pagesOfKind(store, models.KindCategory)
	require.Len(t, categories, 1)
	assert.Equal(t, root.ID, categories[0].ParentID)
}

// failingStore fails product creation for one title.
type failingStore struct {
	storage.CatalogStore
	failProduct string
}

func (f *failingStore) CreateChild(ctx context.Context, parent, page *models.Page) error {
	if page.Kind == models.KindProduct && page.Title == f.failProduct {
		return errors.New("disk full")
	}
	return f.CatalogStore.CreateChild(ctx, parent, page)
}

func (f *failingStore) WithinTx(ctx context.Context, fn func(tx storage.CatalogStore) error) error {
	return f.CatalogStore.WithinTx(ctx, func(tx storage.CatalogStore) error {
		return fn(&failingStore{CatalogStore: tx, failProduct: f.failProduct})
	})
}

func TestImportUnexpectedFailureIsRowLevel(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(&failingStore{CatalogStore: store, failProduct: "Hammer"})

	res, err := im.Import(context.Background(), rows(
		[3]string{"Tools", "Hammer", "10"},
		[3]string{"Tools", "Saw", "12"},
		[3]string{"Racks", "Rack A", "19.99"},
	), false)
	require.NoError(t, err)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Error(), "disk full")
	assert.False(t, models.IsFatal(res.Errors[0]))

	// The failed row's category was rolled back, so row 3 creates it.
	assert.Equal(t, 2, res.CategoriesCreated)
	assert.Equal(t, 2, res.ProductsCreated)
	assert.Equal(t, models.ActionCreated, res.Outcomes[1].CategoryAction)
	assert.Len(t, pagesOfKind(store, models.KindCategory), 2)
}

func TestDryRunMatchesRealRunWithoutWriting(t *testing.T) {
	input := rows(
		[3]string{"Racks", "Rack A", "19.99"},
		[3]string{"Racks", "Rack B", "25.00"},
		[3]string{"Racks", "Rack A", "18.00"},
		[3]string{"Shelves", "Shelf A", "bad"},
		[3]string{"Benches", "Bench", "100"},
	)

	dryStore := newSeededStore(t)
	dry, err := newTestImporter(dryStore).Import(context.Background(), input, true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.True(t, dry.RootCreated)
	assert.Len(t, dryStore.Pages(), 1, "dry run must not write")

	realStore := newSeededStore(t)
	realRes, err := newTestImporter(realStore).Import(context.Background(), input, false)
	require.NoError(t, err)

	assert.Equal(t, realRes.CategoriesCreated, dry.CategoriesCreated)
	assert.Equal(t, realRes.ProductsCreated, dry.ProductsCreated)
	assert.Equal(t, realRes.ProductsUpdated, dry.ProductsUpdated)
	assert.Equal(t, len(realRes.Errors), len(dry.Errors))
	assert.Equal(t, models.ActionWouldUpdate, dry.Outcomes[2].ProductAction)
}

func TestDryRunReportsExistingEntities(t *testing.T) {
	store := newSeededStore(t)
	im := newTestImporter(store)
	_, err := im.Import(context.Background(), rows([3]string{"Racks", "Rack A", "19.99"}), false)
	require.NoError(t, err)
	pagesBefore := len(store.Pages())

	res, err := im.Import(context.Background(), rows(
		[3]string{"Racks", "Rack A", "5"},
		[3]string{"Racks", "Rack Z", "6"},
	), true)
	require.NoError(t, err)
	assert.False(t, res.RootCreated)
	assert.Equal(t, 0, res.CategoriesCreated)
	assert.Equal(t, 1, res.ProductsCreated)
	assert.Equal(t, 1, res.ProductsUpdated)
	assert.Equal(t, models.ActionWouldUpdate, res.Outcomes[0].ProductAction)
	assert.Equal(t, models.ActionWouldCreate, res.Outcomes[1].ProductAction)

	assert.Len(t, store.Pages(), pagesBefore)
	products := pagesOfKind(store, models.KindProduct)
	assert.Equal(t, "19.99", products[0].Price.StringFixed(2))
}

func TestDryRunWithoutHomeIsFatal(t *testing.T) {
	_, err := newTestImporter(storage.NewMemoryStore()).Import(context.Background(), nil, true)
	require.ErrorIs(t, err, models.ErrNoHomePage)
}

func TestImportMalformedRecordIsRowLevel(t *testing.T) {
	store := newSeededStore(t)
	input := []models.ImportRow{
		{Row: 2, CategoryName: "Racks", ProductName: "Rack A", PriceText: "19.99"},
		{Row: 3, Malformed: `bare " in non-quoted-field`},
		{Row: 4, CategoryName: "Shelves", ProductName: "Shelf A", PriceText: "10"},
	}

	res, err := newTestImporter(store).Import(context.Background(), input, false)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ProductsCreated)
	assert.Equal(t, 2, res.CategoriesCreated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, `Row 3: malformed record: bare " in non-quoted-field`, res.Errors[0].Error())
	assert.Equal(t, models.ActionError, res.Outcomes[1].ProductAction)
}

func TestImportSetsSKUOnCreate(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	im := newTestImporter(store)

	_, err := im.Import(ctx, []models.ImportRow{
		{Row: 2, CategoryName: "Racks", ProductName: "Rack A", PriceText: "1", SKU: " RK-A "},
	}, false)
	require.NoError(t, err)

	res, err := im.Import(ctx, []models.ImportRow{
		{Row: 2, CategoryName: "Racks", ProductName: "Rack A", PriceText: "2", SKU: "OTHER"},
		{Row: 3, CategoryName: "Racks", ProductName: "Rack B", PriceText: "3", SKU: strings.Repeat("x", models.MaxSKULength+1)},
	}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ProductsUpdated)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "Row 3: "+models.ReasonSKUTooLong, res.Errors[0].Error())

	products := pagesOfKind(store, models.KindProduct)
	require.Len(t, products, 1)
	assert.Equal(t, "RK-A", products[0].SKU, "updates leave the SKU alone")
	assert.True(t, products[0].Live)
}

func TestImportRejectsUnpublishedRoot(t *testing.T) {
	store := newSeededStore(t)
	ctx := context.Background()
	home, err := store.FindSingleton(ctx, models.KindHome)
	require.NoError(t, err)
	require.NoError(t, store.CreateChild(ctx, home, &models.Page{Kind: models.KindListingRoot, Title: "Products", Slug: "products"}))
	before := len(store.Pages())

	for _, dryRun := range []bool{false, true} {
		_, err := newTestImporter(store).Import(ctx, rows([3]string{"Racks", "Rack A", "1"}), dryRun)
		require.ErrorIs(t, err, models.ErrPageNotLive)
		assert.True(t, models.IsFatal(err))
	}
	assert.Len(t, store.Pages(), before)
}

func TestImportRequiresLiveHome(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.CreateChild(ctx, nil, &models.Page{Kind: models.KindHome, Title: "Home", Slug: "home"}))

	_, err := newTestImporter(store).Import(ctx, rows([3]string{"Racks", "Rack A", "1"}), false)
	require.ErrorIs(t, err, models.ErrNoHomePage)
	assert.Len(t, store.Pages(), 1)
}
