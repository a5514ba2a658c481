package catalog

import "context"

// BookRepository defines book data storage.
type BookRepository interface {
	Create(ctx context.Context, b *Book) error
	GetByID(ctx context.Context, id string) (*Book, error)
	GetBySKU(ctx context.Context, sku string) (*Book, error)
	List(ctx context.Context) ([]*Book, error)
	ListByBundle(ctx context.Context, bundleID string) ([]*Book, error)
	Update(ctx context.Context, b *Book) error
	Delete(ctx context.Context, id string) error
}

// BundleRepository defines bundle data storage.
type BundleRepository interface {
	Create(ctx context.Context, b *Bundle) error
	GetByID(ctx context.Context, id string) (*Bundle, error)
	GetByName(ctx context.Context, name string) (*Bundle, error)
	List(ctx context.Context) ([]*Bundle, error)
	Update(ctx context.Context, b *Bundle) error
	Delete(ctx context.Context, id string) error
}
