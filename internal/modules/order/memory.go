package order

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bookpress/backend/internal/apperr"
)

// memoryRepo is a mutex-guarded in-memory order repository for unit tests
// and local development.
type memoryRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
}

// NewMemoryRepository creates an empty in-memory order repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{orders: make(map[string]*Order)}
}

func (r *memoryRepo) Create(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneOrder(o)
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	r.orders[o.ID.String()] = cp
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (r *memoryRepo) List(ctx context.Context, opts ListOptions) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Order
	for _, o := range r.orders {
		if !matches(o, opts) {
			continue
		}
		matched = append(matched, cloneOrder(o))
	}

	sort.Slice(matched, func(i, j int) bool {
		var less bool
		switch opts.SortBy {
		case "customer_name":
			less = matched[i].Customer.Name < matched[j].Customer.Name
		case "updated_at":
			less = matched[i].UpdatedAt.Before(matched[j].UpdatedAt)
		default:
			less = matched[i].CreatedAt.Before(matched[j].CreatedAt)
		}
		if opts.SortDesc {
			return !less
		}
		return less
	})

	total := len(matched)
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	return &Page{
		Orders:      matched[start:end],
		CurrentPage: opts.Page,
		TotalPages:  (total + opts.Limit - 1) / opts.Limit,
		TotalOrders: total,
		Limit:       opts.Limit,
	}, nil
}

func (r *memoryRepo) Update(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[o.ID.String()]
	if !ok {
		return apperr.NotFound("order", o.ID.String())
	}
	cp := cloneOrder(o)
	cp.CreatedAt = existing.CreatedAt
	cp.UpdatedAt = time.Now()
	r.orders[o.ID.String()] = cp
	return nil
}

func (r *memoryRepo) UpdateStatus(ctx context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[o.ID.String()]
	if !ok {
		return apperr.NotFound("order", o.ID.String())
	}
	existing.Status = o.Status
	existing.Courier.TrackingID = o.Courier.TrackingID
	existing.UpdatedBy = o.UpdatedBy
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) UpdateReturnState(ctx context.Context, orderID string, state ReturnState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.orders[orderID]
	if !ok {
		return apperr.NotFound("order", orderID)
	}
	existing.ReturnStatus = state.ReturnStatus
	existing.HasActiveReturn = state.HasActiveReturn
	existing.TotalReturnedValue = state.TotalReturnedValue
	existing.UpdatedAt = time.Now()
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return apperr.NotFound("order", id)
	}
	delete(r.orders, id)
	return nil
}

func matches(o *Order, opts ListOptions) bool {
	if opts.Search != "" {
		q := strings.ToLower(opts.Search)
		if !strings.Contains(strings.ToLower(o.Customer.Name), q) &&
			!strings.Contains(strings.ToLower(o.Customer.PhoneNumber), q) &&
			!strings.Contains(strings.ToLower(o.Customer.Email), q) &&
			!strings.Contains(strings.ToLower(o.TransactionID), q) {
			return false
		}
	}
	if opts.IsCompleted != nil && o.IsCompleted != *opts.IsCompleted {
		return false
	}
	if opts.PrintingStatus != "" && o.Status.Printing != opts.PrintingStatus {
		return false
	}
	if opts.DispatchStatus != "" && o.Status.Dispatch != opts.DispatchStatus {
		return false
	}
	return true
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Items = make([]*LineItem, len(o.Items))
	for i, item := range o.Items {
		itemCopy := *item
		cp.Items[i] = &itemCopy
	}
	cp.BundleIDs = append([]uuid.UUID(nil), o.BundleIDs...)
	if o.UpdatedBy != nil {
		uid := *o.UpdatedBy
		cp.UpdatedBy = &uid
	}
	return &cp
}
