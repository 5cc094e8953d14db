package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PageKind identifies the role a page plays in the site tree.
type PageKind string

const (
	KindHome        PageKind = "home"
	KindAbout       PageKind = "about"
	KindContact     PageKind = "contact"
	KindListingRoot PageKind = "listing_root"
	KindCategory    PageKind = "category"
	KindProduct     PageKind = "product"
)

var (
	ErrSingletonExists = errors.New("only one page of this kind can exist")
	ErrInvalidParent   = errors.New("page kind cannot be placed under this parent")
	ErrUnknownKind     = errors.New("unknown page kind")
	ErrPageNotFound    = errors.New("page not found")
	ErrPageNotLive     = errors.New("page is not live")
)

type kindRule struct {
	parent    PageKind // empty for the tree root
	singleton bool
}

var kindRules = map[PageKind]kindRule{
	KindHome:        {parent: "", singleton: true},
	KindAbout:       {parent: KindHome, singleton: true},
	KindContact:     {parent: KindHome, singleton: true},
	KindListingRoot: {parent: KindHome, singleton: true},
	KindCategory:    {parent: KindListingRoot},
	KindProduct:     {parent: KindCategory},
}

// IsSingleton reports whether at most one page of kind may exist.
func (k PageKind) IsSingleton() bool {
	return kindRules[k].singleton
}

// ValidatePlacement checks that a page of kind may be created under a parent
// of parentKind. An empty parentKind means the page has no parent.
func ValidatePlacement(kind, parentKind PageKind) error {
	rule, ok := kindRules[kind]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	if rule.parent != parentKind {
		if parentKind == "" {
			return fmt.Errorf("%w: %s requires a %s parent", ErrInvalidParent, kind, rule.parent)
		}
		return fmt.Errorf("%w: %s under %s", ErrInvalidParent, kind, parentKind)
	}
	return nil
}

// SingletonError is returned when a second instance of a singleton kind is
// about to be created.
func SingletonError(kind PageKind) error {
	return fmt.Errorf("%w: %s already exists, edit the existing page instead", ErrSingletonExists, kind)
}

// Page is one node of the site tree. Price, Description and SKU only carry
// meaning for product pages. Pages that are not Live stay in the tree but are
// left out of the public catalog.
type Page struct {
	ID          int64
	ParentID    int64
	Kind        PageKind
	Path        string
	Title       string
	Slug        string
	Price       decimal.Decimal
	Description string
	SKU         string
	Live        bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
