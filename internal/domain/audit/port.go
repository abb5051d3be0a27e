package audit

import "context"

// Repository port for persisting and querying audit entries
type Repository interface {
	Save(ctx context.Context, e *Entry) error
	Paginate(ctx context.Context, page, pageSize int) (Page, error)
}
