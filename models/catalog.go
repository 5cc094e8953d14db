package models

// CatalogCategory is a live category as listed in the public catalog.
type CatalogCategory struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// CatalogProduct is one entry of the product feed. Price is formatted with
// two decimal places.
type CatalogProduct struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Price       string `json:"price"`
	Description string `json:"description"`
	SKU         string `json:"sku"`
	Category    string `json:"category"`
}

// Catalog is the read side of the listing root: live categories and live
// products, each ordered by title.
type Catalog struct {
	Categories []CatalogCategory `json:"categories"`
	Products   []CatalogProduct  `json:"products"`
}
