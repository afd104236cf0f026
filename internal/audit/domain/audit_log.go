package domain

import "time"

// AuditLog is one recorded change. OrgID and UserID are nil for anonymous or tenant-less requests.
type AuditLog struct {
	ID        string
	OrgID     *int64
	UserID    *int64
	Action    string
	Resource  string
	IP        string
	Metadata  string
	CreatedAt time.Time
}
