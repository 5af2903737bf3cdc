package domain

import "time"

// Department is the routing unit for concerns. Each active department has
// its own staff pool; its head receives escalation and overdue notices.
type Department struct {
	ID          string
	Name        string
	Description string
	HeadStaffID *string
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
