package catalog

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookpress/backend/internal/apperr"
)

// In-memory repositories for unit tests and local development.

type memoryBookRepo struct {
	mu    sync.Mutex
	books map[string]*Book // keyed by book id
}

// NewMemoryBookRepository creates an empty in-memory book repository.
func NewMemoryBookRepository() BookRepository {
	return &memoryBookRepo{books: make(map[string]*Book)}
}

func (r *memoryBookRepo) Create(ctx context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.books {
		if existing.SKU == b.SKU {
			return apperr.Conflict("book with SKU %s already exists", b.SKU)
		}
	}
	cp := *b
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.books[b.ID.String()] = &cp
	return nil
}

func (r *memoryBookRepo) GetByID(ctx context.Context, id string) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[id]
	if !ok {
		return nil, apperr.NotFound("book", id)
	}
	cp := *b
	return &cp, nil
}

func (r *memoryBookRepo) GetBySKU(ctx context.Context, sku string) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.books {
		if b.SKU == sku {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("book", sku)
}

func (r *memoryBookRepo) List(ctx context.Context) ([]*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Book, 0, len(r.books))
	for _, b := range r.books {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memoryBookRepo) ListByBundle(ctx context.Context, bundleID string) ([]*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Book
	for _, b := range r.books {
		if b.BundleID.String() == bundleID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (r *memoryBookRepo) Update(ctx context.Context, b *Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[b.ID.String()]; !ok {
		return apperr.NotFound("book", b.ID.String())
	}
	cp := *b
	cp.UpdatedAt = time.Now()
	r.books[b.ID.String()] = &cp
	return nil
}

func (r *memoryBookRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.books[id]; !ok {
		return apperr.NotFound("book", id)
	}
	delete(r.books, id)
	return nil
}

type memoryBundleRepo struct {
	mu      sync.Mutex
	bundles map[string]*Bundle // keyed by bundle id
}

// NewMemoryBundleRepository creates an empty in-memory bundle repository.
func NewMemoryBundleRepository() BundleRepository {
	return &memoryBundleRepo{bundles: make(map[string]*Bundle)}
}

func (r *memoryBundleRepo) Create(ctx context.Context, b *Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.bundles {
		if existing.Name == b.Name {
			return apperr.Conflict("bundle %s already exists", b.Name)
		}
	}
	cp := *b
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.bundles[b.ID.String()] = &cp
	return nil
}

func (r *memoryBundleRepo) GetByID(ctx context.Context, id string) (*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bundles[id]
	if !ok {
		return nil, apperr.NotFound("bundle", id)
	}
	cp := *b
	return &cp, nil
}

func (r *memoryBundleRepo) GetByName(ctx context.Context, name string) (*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.bundles {
		if b.Name == name {
			cp := *b
			return &cp, nil
		}
	}
	return nil, apperr.NotFound("bundle", name)
}

func (r *memoryBundleRepo) List(ctx context.Context) ([]*Bundle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Bundle, 0, len(r.bundles))
	for _, b := range r.bundles {
		cp := *b
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memoryBundleRepo) Update(ctx context.Context, b *Bundle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bundles[b.ID.String()]; !ok {
		return apperr.NotFound("bundle", b.ID.String())
	}
	cp := *b
	cp.UpdatedAt = time.Now()
	r.bundles[b.ID.String()] = &cp
	return nil
}

func (r *memoryBundleRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bundles[id]; !ok {
		return apperr.NotFound("bundle", id)
	}
	delete(r.bundles, id)
	return nil
}
