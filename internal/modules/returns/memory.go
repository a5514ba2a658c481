package returns

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bookpress/backend/internal/apperr"
)

// memoryRepo is an in-memory Repository used in tests and local runs.
type memoryRepo struct {
	mu       sync.Mutex
	requests map[string]*Request
}

// NewMemoryRepository creates an empty in-memory return-request repository.
func NewMemoryRepository() Repository {
	return &memoryRepo{requests: make(map[string]*Request)}
}

func (r *memoryRepo) Create(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	req.CreatedAt = now
	req.UpdatedAt = now
	r.requests[req.ID.String()] = cloneRequest(req)
	return nil
}

func (r *memoryRepo) GetByID(ctx context.Context, id string) (*Request, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.requests[id]
	if !ok {
		return nil, apperr.NotFound("return request", id)
	}
	return cloneRequest(req), nil
}

func (r *memoryRepo) List(ctx context.Context, opts ListOptions) (*Page, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []*Request
	for _, req := range r.requests {
		if opts.Type != "" && req.Type != opts.Type {
			continue
		}
		if opts.Status != "" && req.Status != opts.Status {
			continue
		}
		matched = append(matched, req)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	totalPages := (total + opts.Limit - 1) / opts.Limit
	start := (opts.Page - 1) * opts.Limit
	if start > total {
		start = total
	}
	end := start + opts.Limit
	if end > total {
		end = total
	}

	page := make([]*Request, 0, end-start)
	for _, req := range matched[start:end] {
		page = append(page, cloneRequest(req))
	}
	return &Page{
		Requests:      page,
		CurrentPage:   opts.Page,
		TotalPages:    totalPages,
		TotalRequests: total,
		Limit:         opts.Limit,
	}, nil
}

func (r *memoryRepo) Update(ctx context.Context, req *Request) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.requests[req.ID.String()]
	if !ok {
		return apperr.NotFound("return request", req.ID.String())
	}
	updated := cloneRequest(req)
	updated.CreatedAt = stored.CreatedAt
	updated.UpdatedAt = time.Now().UTC()
	r.requests[req.ID.String()] = updated
	return nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[id]; !ok {
		return apperr.NotFound("return request", id)
	}
	delete(r.requests, id)
	return nil
}

func (r *memoryRepo) Stats(ctx context.Context) (*Stats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := &Stats{}
	buckets := make(map[[2]string]*StatsBucket)
	for _, req := range r.requests {
		stats.TotalRequests++
		if !req.Status.Terminal() {
			stats.ActiveRequests++
		}
		key := [2]string{string(req.Type), string(req.Status)}
		b, ok := buckets[key]
		if !ok {
			b = &StatsBucket{Type: req.Type, Status: req.Status}
			buckets[key] = b
		}
		b.Count++
		b.TotalValue = b.TotalValue.Add(req.Financials.TotalOrderValue)
		b.TotalRefunds = b.TotalRefunds.Add(req.Financials.RefundAmount)
	}
	for _, b := range buckets {
		stats.Breakdown = append(stats.Breakdown, *b)
	}
	sort.Slice(stats.Breakdown, func(i, j int) bool {
		if stats.Breakdown[i].Type != stats.Breakdown[j].Type {
			return stats.Breakdown[i].Type < stats.Breakdown[j].Type
		}
		return stats.Breakdown[i].Status < stats.Breakdown[j].Status
	})
	return stats, nil
}

func cloneRequest(req *Request) *Request {
	out := *req
	out.Items = make([]*Item, len(req.Items))
	for i, item := range req.Items {
		c := *item
		if item.ReplacementBookID != nil {
			id := *item.ReplacementBookID
			c.ReplacementBookID = &id
		}
		out.Items[i] = &c
	}
	if req.Resolution != nil {
		res := *req.Resolution
		out.Resolution = &res
	}
	return &out
}
