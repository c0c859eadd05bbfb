package app_test

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// --- Mocks ---

type mockStore struct {
	users         map[string]domain.User
	cities        map[string]domain.City
	connections   map[string]domain.Connection
	messages      map[string]domain.Message
	notifications map[string]domain.Notification
	activities    map[string]domain.Activity
	rsvps         map[string]domain.ActivityRSVP
}

func newMockStore() *mockStore {
	return &mockStore{
		users:         make(map[string]domain.User),
		cities:        make(map[string]domain.City),
		connections:   make(map[string]domain.Connection),
		messages:      make(map[string]domain.Message),
		notifications: make(map[string]domain.Notification),
		activities:    make(map[string]domain.Activity),
		rsvps:         make(map[string]domain.ActivityRSVP),
	}
}

func (m *mockStore) addUsers(ids ...string) {
	for _, id := range ids {
		m.users[id] = domain.User{ID: id, FirstName: id}
	}
}

func (m *mockStore) CreateUser(_ context.Context, u domain.User) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (domain.User, error) {
	u, ok := m.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (m *mockStore) CreateCity(_ context.Context, c domain.City) error {
	m.cities[c.ID] = c
	return nil
}

func (m *mockStore) GetCity(_ context.Context, id string) (domain.City, error) {
	c, ok := m.cities[id]
	if !ok {
		return domain.City{}, domain.ErrCityNotFound
	}
	return c, nil
}

func (m *mockStore) CreateConnection(_ context.Context, c domain.Connection) error {
	m.connections[c.ID] = c
	return nil
}

func (m *mockStore) GetConnection(_ context.Context, kind domain.ConnectionKind, id string) (domain.Connection, error) {
	c, ok := m.connections[id]
	if !ok || c.Kind != kind {
		return domain.Connection{}, domain.ErrConnectionNotFound
	}
	return c, nil
}

func (m *mockStore) ListConnections(_ context.Context, kind domain.ConnectionKind, userID string) ([]domain.Connection, error) {
	var out []domain.Connection
	for _, c := range m.connections {
		if c.Kind == kind && c.Involves(userID) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateConnection(_ context.Context, c domain.Connection) error {
	stored, ok := m.connections[c.ID]
	if !ok {
		return domain.ErrConnectionNotFound
	}
	if stored.Version != c.Version {
		return domain.ErrConcurrentUpdate
	}
	c.Version++
	m.connections[c.ID] = c
	return nil
}

func (m *mockStore) CreateMessage(_ context.Context, msg domain.Message, notifications []domain.Notification, updated ...domain.Notification) error {
	for _, n := range updated {
		stored, ok := m.notifications[n.ID]
		if !ok {
			return domain.ErrNotificationNotFound
		}
		if stored.Version != n.Version {
			return domain.ErrConcurrentUpdate
		}
	}
	for _, n := range updated {
		n.Version++
		m.notifications[n.ID] = n
	}
	m.messages[msg.ID] = msg
	for _, n := range notifications {
		m.notifications[n.ID] = n
	}
	return nil
}

func (m *mockStore) GetMessage(_ context.Context, kind domain.MessageKind, id string) (domain.Message, error) {
	msg, ok := m.messages[id]
	if !ok || msg.Kind != kind {
		return domain.Message{}, domain.ErrMessageNotFound
	}
	return msg, nil
}

func (m *mockStore) ListMessages(_ context.Context, kind domain.MessageKind, userID string, dir domain.Direction) ([]domain.Message, error) {
	var out []domain.Message
	for _, msg := range m.messages {
		if msg.Kind != kind {
			continue
		}
		if (dir == domain.DirectionOut && msg.SenderID == userID) ||
			(dir == domain.DirectionIn && slices.Contains(msg.RecipientIDs, userID)) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) UpdateMessage(_ context.Context, msg domain.Message) error {
	stored, ok := m.messages[msg.ID]
	if !ok {
		return domain.ErrMessageNotFound
	}
	if stored.Version != msg.Version {
		return domain.ErrConcurrentUpdate
	}
	msg.Version++
	m.messages[msg.ID] = msg
	return nil
}

func (m *mockStore) FindNotification(_ context.Context, messageID, userID string) (domain.Notification, error) {
	for _, n := range m.notifications {
		if n.MessageID == messageID && n.UserID == userID {
			return n, nil
		}
	}
	return domain.Notification{}, domain.ErrNotificationNotFound
}

func (m *mockStore) UpdateNotification(_ context.Context, n domain.Notification) error {
	stored, ok := m.notifications[n.ID]
	if !ok {
		return domain.ErrNotificationNotFound
	}
	if stored.Version != n.Version {
		return domain.ErrConcurrentUpdate
	}
	n.Version++
	m.notifications[n.ID] = n
	return nil
}

func (m *mockStore) CreateActivity(ctx context.Context, a domain.Activity, rsvps ...domain.ActivityRSVP) error {
	if _, ok := m.cities[a.CityID]; !ok {
		return domain.ErrCityNotFound
	}
	m.activities[a.ID] = a
	for _, r := range rsvps {
		if _, err := m.SetRSVP(ctx, r); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockStore) GetActivity(_ context.Context, id string) (domain.Activity, error) {
	a, ok := m.activities[id]
	if !ok {
		return domain.Activity{}, domain.ErrActivityNotFound
	}
	a.Attending = make(map[domain.RSVPStatus]int)
	for _, r := range m.rsvps {
		if r.ActivityID == id {
			a.Attending[r.Status]++
		}
	}
	return a, nil
}

func (m *mockStore) ListActivities(ctx context.Context, cityID string) ([]domain.Activity, error) {
	var out []domain.Activity
	for id, a := range m.activities {
		if cityID == "" || a.CityID == cityID {
			loaded, _ := m.GetActivity(ctx, id)
			out = append(out, loaded)
		}
	}
	slices.SortFunc(out, func(a, b domain.Activity) int { return a.ScheduledFrom.Compare(b.ScheduledFrom) })
	return out, nil
}

func (m *mockStore) UpdateActivity(_ context.Context, a domain.Activity) error {
	stored, ok := m.activities[a.ID]
	if !ok {
		return domain.ErrActivityNotFound
	}
	if stored.Version != a.Version {
		return domain.ErrConcurrentUpdate
	}
	a.Version++
	m.activities[a.ID] = a
	return nil
}

func (m *mockStore) SetRSVP(_ context.Context, r domain.ActivityRSVP) (domain.ActivityRSVP, error) {
	key := r.ActivityID + "/" + r.UserID
	if stored, ok := m.rsvps[key]; ok {
		r.ID = stored.ID
	}
	m.rsvps[key] = r
	return r, nil
}

func (m *mockStore) ListRSVPs(_ context.Context, activityID string) ([]domain.ActivityRSVP, error) {
	var out []domain.ActivityRSVP
	for _, r := range m.rsvps {
		if r.ActivityID == activityID {
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b domain.ActivityRSVP) int { return strings.Compare(a.UserID, b.UserID) })
	return out, nil
}

type mockPublisher struct {
	events []domain.TransitionEvent
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, e domain.TransitionEvent) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, e)
	return nil
}

type mockLocker struct {
	locked   []string
	unlocked int
}

func (m *mockLocker) Lock(_ context.Context, key string, _ time.Duration) (domain.UnlockFunc, error) {
	m.locked = append(m.locked, key)
	return func(context.Context) error {
		m.unlocked++
		return nil
	}, nil
}
