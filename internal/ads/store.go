package ads

import "context"

// IndexStore is the keyword -> ad id inverted index. Each logical operation
// opens a session and closes it when done; no session outlives a call.
type IndexStore interface {
	Open(ctx context.Context) (IndexSession, error)
}

// IndexSession is a scoped handle on the inverted index.
type IndexSession interface {
	// Put appends adID to the list stored under keyword. Duplicates are kept.
	Put(ctx context.Context, keyword string, adID int64) error
	// Get returns the string-encoded ad ids stored under keyword in
	// insertion order, or an empty slice for an unknown keyword.
	Get(ctx context.Context, keyword string) ([]string, error)
	Close() error
}

// CatalogStore is the ad id -> Advertisement relational store.
type CatalogStore interface {
	Open(ctx context.Context) (CatalogSession, error)
}

// CatalogSession is a scoped handle on the catalog.
type CatalogSession interface {
	Insert(ctx context.Context, ad *Advertisement) error
	// GetByID returns an error wrapping errors.ErrAdNotFound when the id is
	// unknown.
	GetByID(ctx context.Context, adID int64) (*Advertisement, error)
	Close() error
}
