package domain

import "time"

type NotificationType string

const (
	NotificationRestock    NotificationType = "RESTOCK"
	NotificationStockAlert NotificationType = "STOCK_ALERT"
	NotificationSystem     NotificationType = "SYSTEM"
)

func (t NotificationType) Valid() bool {
	switch t {
	case NotificationRestock, NotificationStockAlert, NotificationSystem:
		return true
	}
	return false
}

type Notification struct {
	ID        int64            `json:"id"`
	UserID    int64            `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Content   string           `json:"content"`
	Read      bool             `json:"read"`
	CreatedAt time.Time        `json:"created_at"`
}

func (n *Notification) OwnerID() int64 { return n.UserID }

// RestockSubscription moves one way from notified=false to notified=true.
type RestockSubscription struct {
	ID        int64
	ProductID int64
	UserID    int64
	Notified  bool
	CreatedAt time.Time
}

func (s *RestockSubscription) OwnerID() int64 { return s.UserID }
