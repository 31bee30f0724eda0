package model

import "time"

// Type identifies the rule that produced a notification.
type Type string

const (
	TypeLowStock          Type = "low_stock"
	TypeUpcomingBill      Type = "upcoming_bill"
	TypeOverdueReceivable Type = "overdue_receivable"
	TypeBirthday          Type = "birthday"
	TypePendingCheck      Type = "pending_check"
)

// Category returns the counts category fed by notifications of this type.
func (t Type) Category() Category {
	switch t {
	case TypeLowStock:
		return CategoryLowStock
	case TypeUpcomingBill:
		return CategoryUpcomingBills
	case TypeOverdueReceivable:
		return CategoryOverdueReceivables
	case TypeBirthday:
		return CategoryBirthdays
	default:
		return CategoryPendingChecks
	}
}

// Severity is the urgency of a notification.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns the display rank of the severity. Lower ranks are shown first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Notification is a business alert derived from exactly one source record. It is never stored.
type Notification struct {
	ID       string      `json:"id"`
	Type     Type        `json:"type"`
	Severity Severity    `json:"severity"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	Icon     string      `json:"icon"`
	Data     interface{} `json:"data"`
}

// Category names a counts bucket.
type Category string

const (
	CategoryLowStock           Category = "lowStock"
	CategoryUpcomingBills      Category = "upcomingBills"
	CategoryOverdueReceivables Category = "overdueReceivables"
	CategoryBirthdays          Category = "birthdays"
	CategoryPendingChecks      Category = "pendingChecks"
)

// Categories lists every category in classifier order.
func Categories() []Category {
	return []Category{
		CategoryLowStock,
		CategoryUpcomingBills,
		CategoryOverdueReceivables,
		CategoryBirthdays,
		CategoryPendingChecks,
	}
}

// Counts holds the number of matched records per category.
type Counts struct {
	LowStock           int `json:"lowStock"`
	UpcomingBills      int `json:"upcomingBills"`
	OverdueReceivables int `json:"overdueReceivables"`
	Birthdays          int `json:"birthdays"`
	PendingChecks      int `json:"pendingChecks"`
	Total              int `json:"total"`
}

// Get returns the count for a single category.
func (c Counts) Get(category Category) int {
	switch category {
	case CategoryLowStock:
		return c.LowStock
	case CategoryUpcomingBills:
		return c.UpcomingBills
	case CategoryOverdueReceivables:
		return c.OverdueReceivables
	case CategoryBirthdays:
		return c.Birthdays
	case CategoryPendingChecks:
		return c.PendingChecks
	}
	return 0
}

// Snapshot is the result of one refresh cycle as seen by the presentation layer.
type Snapshot struct {
	CycleID       string          `json:"cycle_id"`
	StoreName     string          `json:"store_name,omitempty"`
	GeneratedAt   time.Time       `json:"generated_at"`
	Notifications []*Notification `json:"notifications"`
	Counts        Counts          `json:"counts"`

	// Unavailable lists the categories whose source collection could not be fetched.
	Unavailable []Category `json:"unavailable,omitempty"`
}

// Without returns a copy of the snapshot that omits the notification with the given ID. The
// second return value is false if no such notification is present.
func (s *Snapshot) Without(id string) (*Snapshot, bool) {
	found := false
	kept := make([]*Notification, 0, len(s.Notifications))
	for _, n := range s.Notifications {
		if n.ID == id {
			found = true
			continue
		}
		kept = append(kept, n)
	}
	if !found {
		return s, false
	}

	result := *s
	result.Notifications = kept
	return &result, true
}
