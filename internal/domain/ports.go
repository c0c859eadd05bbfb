package domain

import (
	"context"
	"time"
)

// UserRepository defines the persistence contract for users.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
}

// CityRepository defines the persistence contract for cities.
type CityRepository interface {
	CreateCity(ctx context.Context, city City) error
	GetCity(ctx context.Context, id string) (City, error)
}

// ConnectionRepository defines the persistence contract for connections.
// UpdateConnection is a compare-and-swap on Version and returns
// ErrConcurrentUpdate when the stored row moved on.
type ConnectionRepository interface {
	CreateConnection(ctx context.Context, conn Connection) error
	GetConnection(ctx context.Context, kind ConnectionKind, id string) (Connection, error)
	ListConnections(ctx context.Context, kind ConnectionKind, userID string) ([]Connection, error)
	UpdateConnection(ctx context.Context, conn Connection) error
}

// MessageRepository defines the persistence contract for messages and their
// per-recipient notifications. Updates are compare-and-swap on Version.
type MessageRepository interface {
	// CreateMessage stores msg with its new notifications and applies the
	// updated notifications in the same transaction.
	CreateMessage(ctx context.Context, msg Message, notifications []Notification, updated ...Notification) error
	GetMessage(ctx context.Context, kind MessageKind, id string) (Message, error)
	ListMessages(ctx context.Context, kind MessageKind, userID string, dir Direction) ([]Message, error)
	UpdateMessage(ctx context.Context, msg Message) error
	FindNotification(ctx context.Context, messageID, userID string) (Notification, error)
	UpdateNotification(ctx context.Context, n Notification) error
}

// ActivityRepository defines the persistence contract for activities and
// their RSVPs. Loaded activities carry their attending counts.
type ActivityRepository interface {
	// CreateActivity stores a with the given RSVPs in one transaction.
	CreateActivity(ctx context.Context, a Activity, rsvps ...ActivityRSVP) error
	GetActivity(ctx context.Context, id string) (Activity, error)
	// ListActivities returns every activity, or those of cityID when set,
	// ordered by start time.
	ListActivities(ctx context.Context, cityID string) ([]Activity, error)
	// UpdateActivity is a compare-and-swap on Version.
	UpdateActivity(ctx context.Context, a Activity) error
	// SetRSVP inserts or replaces the answer of r.UserID to r.ActivityID and
	// returns the stored row.
	SetRSVP(ctx context.Context, r ActivityRSVP) (ActivityRSVP, error)
	ListRSVPs(ctx context.Context, activityID string) ([]ActivityRSVP, error)
}

// TransitionEvent is emitted after a state change has been persisted.
type TransitionEvent struct {
	EntityKind string
	EntityID   string
	Field      string
	From       State
	To         State
	Author     string
	Seq        int
}

// EventPublisher defines the contract for emitting transition events.
type EventPublisher interface {
	Publish(ctx context.Context, event TransitionEvent) error
}

// UnlockFunc releases a lock taken by Locker.
type UnlockFunc func(ctx context.Context) error

// Locker serializes writers of one entity across processes.
type Locker interface {
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
