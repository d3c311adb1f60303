package service

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
)

// NotificationFilter narrows a feed listing
type NotificationFilter struct {
	UnreadOnly bool
	Kind       domain.NotificationKind
}

// NotificationAggregator merges pricing and system notifications into one
// feed ordered newest first. It does no deduplication of its own.
type NotificationAggregator struct {
	items []domain.Notification
	now   func() time.Time
}

// NewNotificationAggregator creates a feed seeded with stored notifications
func NewNotificationAggregator(existing []domain.Notification) *NotificationAggregator {
	a := &NotificationAggregator{
		items: append([]domain.Notification(nil), existing...),
		now:   func() time.Time { return time.Now().UTC() },
	}
	a.sort()
	return a
}

// SetClock replaces the time source; used by tests.
func (a *NotificationAggregator) SetClock(now func() time.Time) {
	a.now = now
}

func (a *NotificationAggregator) sort() {
	sort.SliceStable(a.items, func(i, j int) bool {
		return a.items[i].CreatedAt.After(a.items[j].CreatedAt)
	})
}

func (a *NotificationAggregator) indexOf(id uuid.UUID) int {
	for i := range a.items {
		if a.items[i].ID == id {
			return i
		}
	}
	return -1
}

// Add appends a notification, filling id and timestamps when missing.
func (a *NotificationAggregator) Add(n domain.Notification) (domain.Notification, error) {
	if !n.Kind.IsValid() {
		return domain.Notification{}, domain.NewValidationError("kind", "unknown notification kind")
	}
	if strings.TrimSpace(n.Title) == "" {
		return domain.Notification{}, domain.NewValidationError("title", "title is required")
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	} else if a.indexOf(n.ID) >= 0 {
		return domain.Notification{}, domain.NewValidationError("id", "notification already in feed")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = a.now()
	}
	if n.UpdatedAt.IsZero() {
		n.UpdatedAt = n.CreatedAt
	}
	a.items = append(a.items, n)
	a.sort()
	return n, nil
}

// AddSystem records an ad-hoc system notification about an entity.
func (a *NotificationAggregator) AddSystem(title, message, entityType, entityID string) (domain.Notification, error) {
	return a.Add(domain.Notification{
		Kind:       domain.NotificationKindSystem,
		Title:      title,
		Message:    message,
		EntityType: entityType,
		EntityID:   entityID,
	})
}

// Get returns one notification.
func (a *NotificationAggregator) Get(id uuid.UUID) (domain.Notification, error) {
	idx := a.indexOf(id)
	if idx < 0 {
		return domain.Notification{}, domain.NewNotFound("notification", id.String())
	}
	return a.items[idx], nil
}

// MarkRead flags a notification as read. Marking twice keeps the first read time.
func (a *NotificationAggregator) MarkRead(id uuid.UUID) (domain.Notification, error) {
	idx := a.indexOf(id)
	if idx < 0 {
		return domain.Notification{}, domain.NewNotFound("notification", id.String())
	}
	n := &a.items[idx]
	if !n.Read {
		now := a.now()
		n.Read = true
		n.ReadAt = &now
		n.UpdatedAt = now
	}
	return *n, nil
}

// MarkAllRead flags every unread notification and returns the changed ones.
func (a *NotificationAggregator) MarkAllRead() []domain.Notification {
	now := a.now()
	changed := make([]domain.Notification, 0)
	for i := range a.items {
		n := &a.items[i]
		if n.Read {
			continue
		}
		n.Read = true
		n.ReadAt = &now
		n.UpdatedAt = now
		changed = append(changed, *n)
	}
	return changed
}

// Remove deletes a notification from the feed and returns it.
func (a *NotificationAggregator) Remove(id uuid.UUID) (domain.Notification, error) {
	idx := a.indexOf(id)
	if idx < 0 {
		return domain.Notification{}, domain.NewNotFound("notification", id.String())
	}
	removed := a.items[idx]
	a.items = append(a.items[:idx], a.items[idx+1:]...)
	return removed, nil
}

// UnreadCount returns the number of unread notifications.
func (a *NotificationAggregator) UnreadCount() int {
	count := 0
	for i := range a.items {
		if !a.items[i].Read {
			count++
		}
	}
	return count
}

// List returns the feed newest first.
func (a *NotificationAggregator) List(filter NotificationFilter) []domain.Notification {
	out := make([]domain.Notification, 0, len(a.items))
	for _, n := range a.items {
		if filter.UnreadOnly && n.Read {
			continue
		}
		if filter.Kind != "" && n.Kind != filter.Kind {
			continue
		}
		out = append(out, n)
	}
	return out
}

// Snapshot returns a copy of the feed, for rollback.
func (a *NotificationAggregator) Snapshot() []domain.Notification {
	return append([]domain.Notification(nil), a.items...)
}

// Restore replaces the feed with an earlier snapshot.
func (a *NotificationAggregator) Restore(items []domain.Notification) {
	a.items = append([]domain.Notification(nil), items...)
}
