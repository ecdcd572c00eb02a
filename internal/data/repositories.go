package data

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

var (
	ErrRecordNotFound = errors.New("record not found")
)

// DBTX is a common interface for *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// PageRequest is a zero-based page index plus a page size.
type PageRequest struct {
	Page int
	Size int
}

func (p PageRequest) Offset() int {
	return p.Page * p.Size
}

// TimeRange bounds a query on event timestamps. Nil ends are open.
type TimeRange struct {
	From *time.Time
	To   *time.Time
}

// EventPage is one page of events plus the total match count.
type EventPage struct {
	Content       []*Event `json:"content"`
	Page          int      `json:"page"`
	Size          int      `json:"size"`
	TotalElements int      `json:"total_elements"`
	TotalPages    int      `json:"total_pages"`
}

// NewEventPage fills in the derived page count.
func NewEventPage(items []*Event, req PageRequest, total int) *EventPage {
	if items == nil {
		items = []*Event{}
	}
	pages := 0
	if req.Size > 0 {
		pages = (total + req.Size - 1) / req.Size
	}
	return &EventPage{
		Content:       items,
		Page:          req.Page,
		Size:          req.Size,
		TotalElements: total,
		TotalPages:    pages,
	}
}

// EmptyEventPage is returned by read paths that swallow store failures.
func EmptyEventPage(req PageRequest) *EventPage {
	return NewEventPage(nil, req, 0)
}
