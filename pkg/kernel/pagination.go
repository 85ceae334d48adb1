package kernel

import "strings"

// Direction of an ordered listing
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ListOptions are offset based listing options. Zero values fall back to
// the first page of DefaultLimit items ordered by creation time.
type ListOptions struct {
	Offset    int
	Limit     int
	OrderBy   string
	Direction Direction
}

const (
	DefaultLimit = 20
	MaxLimit     = 1000
)

// Normalize clamps offset/limit and restricts OrderBy to allowed columns.
func (o ListOptions) Normalize(allowed ...string) ListOptions {
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	ok := false
	for _, a := range allowed {
		if o.OrderBy == a {
			ok = true
			break
		}
	}
	if !ok {
		o.OrderBy = "created"
	}
	if !strings.EqualFold(string(o.Direction), string(Asc)) {
		o.Direction = Desc
	} else {
		o.Direction = Asc
	}
	return o
}

// Paginated is a generic container for a slice of a larger listing
type Paginated[T any] struct {
	Items  []T `json:"items"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// NewPaginated creates a paginated result, nil items become an empty list
func NewPaginated[T any](items []T, opts ListOptions, total int) Paginated[T] {
	if items == nil {
		items = []T{}
	}
	return Paginated[T]{
		Items:  items,
		Offset: opts.Offset,
		Limit:  opts.Limit,
		Total:  total,
	}
}

// HasNext returns whether more items exist after this slice
func (p Paginated[T]) HasNext() bool {
	return p.Offset+len(p.Items) < p.Total
}
