package domain

import (
	"slices"
	"time"
)

// MessageKind distinguishes private messages from hospitality requests.
type MessageKind string

const (
	KindPrivateMessage     MessageKind = "private"
	KindHospitalityRequest MessageKind = "hospitality_request"
)

// Direction selects incoming or outgoing messages for a user.
type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// State field names.
const (
	MessageStatusField      = "status"
	NotificationStatusField = "status"
)

// Hospitality request states.
const (
	RequestUnread   State = "unread"
	RequestAccepted State = "accepted"
	RequestRefused  State = "refused"
	RequestMaybe    State = "maybe"
	RequestCanceled State = "canceled"
)

// Notification states.
const (
	NotificationUnread   State = "unread"
	NotificationRead     State = "read"
	NotificationReplied  State = "replied"
	NotificationDeleted  State = "deleted"
	NotificationArchived State = "archived"
)

// HospitalityRequestTransitions is the hospitality request lifecycle.
var HospitalityRequestTransitions = TransitionTable{
	RequestUnread:   {RequestAccepted, RequestRefused, RequestMaybe, RequestCanceled},
	RequestAccepted: {RequestRefused, RequestMaybe, RequestCanceled},
	RequestMaybe:    {RequestAccepted, RequestRefused, RequestCanceled},
	RequestCanceled: {RequestAccepted, RequestMaybe},
}

// NotificationTransitions is the per-recipient message status lifecycle.
var NotificationTransitions = TransitionTable{
	NotificationUnread:   {NotificationRead, NotificationReplied, NotificationDeleted, NotificationArchived},
	NotificationRead:     {NotificationDeleted, NotificationArchived, NotificationReplied},
	NotificationArchived: {NotificationDeleted},
}

// Message is a private message or a hospitality request. Status and the date
// range are only meaningful for hospitality requests.
type Message struct {
	Expansion

	ID           string
	Kind         MessageKind
	Subject      string
	Text         string
	SenderID     string
	RecipientIDs []string
	ReplyToID    string
	SentOn       time.Time
	Flags        []string
	DateFrom     Date
	DateTo       Date
	Status       StateValue
	Version      int

	// viewer is the notification of the user the message is rendered for.
	viewer *Notification
}

// NewMessage builds an outgoing message. Hospitality requests start unread.
func NewMessage(id string, kind MessageKind, senderID string, recipients []string) Message {
	m := Message{
		ID:           id,
		Kind:         kind,
		SenderID:     senderID,
		RecipientIDs: recipients,
		SentOn:       time.Now().UTC(),
		Flags:        []string{},
	}
	if kind == KindHospitalityRequest {
		m.Status = NewStateValue(RequestUnread)
	}
	return m
}

func messageFields() []Field {
	return []Field{
		Column("id", func(m *Message) any { return m.ID }),
		Column("type", func(m *Message) any { return string(m.Kind) }),
		Column("subject", func(m *Message) any { return m.Subject }),
		Column("text", func(m *Message) any { return m.Text }),
		Column("sender_id", func(m *Message) any { return m.SenderID }),
		Column("recipient_list_ids", func(m *Message) any { return m.RecipientIDs }),
		Column("reply_to_id", func(m *Message) any { return nullable(m.ReplyToID) }),
		Column("sent_on", func(m *Message) any { return m.SentOn }),
		Column("flags", func(m *Message) any { return m.Flags }),
	}
}

var messageStatus = Column("message_status", func(m *Message) any {
	if m.viewer == nil {
		return nil
	}
	return m.viewer.Status
})

// PrivateMessageSchema is the serialization registry entry for private messages.
var PrivateMessageSchema = RegisterSchema(NewSchema("private",
	SerializationConfig{Force: []string{"message_status"}},
	messageFields(),
	messageStatus,
))

// HospitalityRequestSchema is the serialization registry entry for hospitality requests.
var HospitalityRequestSchema = RegisterSchema(NewSchema("hospitality_request",
	SerializationConfig{Force: []string{"message_status"}},
	append(messageFields(),
		Column("date_from", func(m *Message) any { return m.DateFrom }),
		Column("date_to", func(m *Message) any { return m.DateTo }),
		Column("status", func(m *Message) any { return m.Status }),
	),
	messageStatus,
))

func (m *Message) Schema() *Schema {
	if m.Kind == KindHospitalityRequest {
		return HospitalityRequestSchema
	}
	return PrivateMessageSchema
}

func (m *Message) StateMachine() StateMachineConfig {
	if m.Kind == KindHospitalityRequest {
		return StateMachineConfig{MessageStatusField: HospitalityRequestTransitions}
	}
	return StateMachineConfig{}
}

func (m *Message) StateField(name string) (StateValue, bool) {
	if m.Kind != KindHospitalityRequest || name != MessageStatusField {
		return StateValue{}, false
	}
	return m.Status, true
}

func (m *Message) SetStateField(name string, v StateValue) {
	if m.Kind == KindHospitalityRequest && name == MessageStatusField {
		m.Status = v
	}
}

// ViewAs attaches the notification of the user the message is rendered for,
// which feeds the message_status field. Senders view with nil.
func (m *Message) ViewAs(n *Notification) {
	m.viewer = n
}

// HasRecipient reports whether userID received the message.
func (m *Message) HasRecipient(userID string) bool {
	return slices.Contains(m.RecipientIDs, userID)
}

// Notification tracks one recipient's status for one message.
type Notification struct {
	Expansion

	ID          string
	MessageKind MessageKind
	UserID      string
	MessageID   string
	Status      StateValue
	Version     int
}

// NewNotification creates an unread notification.
func NewNotification(id string, kind MessageKind, userID, messageID string) Notification {
	return Notification{
		ID:          id,
		MessageKind: kind,
		UserID:      userID,
		MessageID:   messageID,
		Status:      NewStateValue(NotificationUnread),
	}
}

// NotificationSchema is the serialization registry entry for notifications.
var NotificationSchema = RegisterSchema(NewSchema("notification",
	SerializationConfig{},
	[]Field{
		Column("id", func(n *Notification) any { return n.ID }),
		Column("user_id", func(n *Notification) any { return n.UserID }),
		Column("message_id", func(n *Notification) any { return n.MessageID }),
		Column("status", func(n *Notification) any { return n.Status }),
	},
))

func (n *Notification) Schema() *Schema { return NotificationSchema }

func (n *Notification) StateMachine() StateMachineConfig {
	return StateMachineConfig{NotificationStatusField: NotificationTransitions}
}

func (n *Notification) StateField(name string) (StateValue, bool) {
	if name != NotificationStatusField {
		return StateValue{}, false
	}
	return n.Status, true
}

func (n *Notification) SetStateField(name string, v StateValue) {
	if name == NotificationStatusField {
		n.Status = v
	}
}
