package domain

import "time"

// ConnectionKind distinguishes the connection types sharing one shape.
type ConnectionKind string

const (
	KindFriendship ConnectionKind = "friendship"
	KindReference  ConnectionKind = "reference"
)

// ConnectionStatusField is the state field every connection owns.
const ConnectionStatusField = "type_status"

// Friendship states.
const (
	FriendshipPending  State = "pending"
	FriendshipAccepted State = "accepted"
	FriendshipRefused  State = "refused"
	FriendshipRemoved  State = "removed"
)

// Reference types. A reference never changes type once written.
const (
	ReferencePositive State = "positive"
	ReferenceNeutral  State = "neutral"
	ReferenceNegative State = "negative"
)

// FriendshipTransitions is the friendship request lifecycle.
var FriendshipTransitions = TransitionTable{
	FriendshipPending:  {FriendshipAccepted, FriendshipRefused},
	FriendshipAccepted: {FriendshipRemoved},
}

// ReferenceTransitions declares the reference universe with no edges.
var ReferenceTransitions = TransitionTable{
	ReferencePositive: {},
	ReferenceNeutral:  {},
	ReferenceNegative: {},
}

// FriendshipLevels maps friendship level codes to their descriptions.
var FriendshipLevels = map[string]string{
	"acquaintance": "Acquaintance",
	"friend":       "Friend",
	"relative":     "Relative",
	"partner":      "Partner",
	"good_friend":  "Good friend",
	"best_friend":  "Best friend",
}

// DefaultFriendshipLevel is used when a request names none.
const DefaultFriendshipLevel = "friend"

// Connection links two users: a friendship request or a reference.
type Connection struct {
	Expansion

	ID              string
	Kind            ConnectionKind
	Description     string
	Text            string
	UserFromID      string
	UserToID        string
	SentOn          time.Time
	Status          StateValue
	FriendshipLevel string
	Flags           []string
	Version         int
}

// NewConnection builds a connection whose status is promoted from initial.
func NewConnection(id string, kind ConnectionKind, from, to string, initial State) Connection {
	return Connection{
		ID:         id,
		Kind:       kind,
		UserFromID: from,
		UserToID:   to,
		SentOn:     time.Now().UTC(),
		Status:     NewStateValue(initial),
		Flags:      []string{},
	}
}

func connectionFields() []Field {
	return []Field{
		Column("id", func(c *Connection) any { return c.ID }),
		Column("type", func(c *Connection) any { return string(c.Kind) }),
		Column("description", func(c *Connection) any { return c.Description }),
		Column("text", func(c *Connection) any { return c.Text }),
		Column("user_from_id", func(c *Connection) any { return c.UserFromID }),
		Column("user_to_id", func(c *Connection) any { return c.UserToID }),
		Column("sent_on", func(c *Connection) any { return c.SentOn }),
		Column("type_status", func(c *Connection) any { return c.Status }),
		Column("flags", func(c *Connection) any { return c.Flags }),
	}
}

// FriendshipSchema is the serialization registry entry for friendships.
var FriendshipSchema = RegisterSchema(NewSchema("friendship",
	SerializationConfig{Exclude: []string{"user_from_id", "user_to_id"}},
	append(connectionFields(),
		Column("friendship_level", func(c *Connection) any { return c.FriendshipLevel }),
	),
	Column("friendship_level_description", func(c *Connection) any {
		return FriendshipLevels[c.FriendshipLevel]
	}),
))

// ReferenceSchema is the serialization registry entry for references.
var ReferenceSchema = RegisterSchema(NewSchema("reference",
	SerializationConfig{Exclude: []string{"user_from_id", "user_to_id", "type_status", "description"}},
	connectionFields(),
))

func (c *Connection) Schema() *Schema {
	if c.Kind == KindReference {
		return ReferenceSchema
	}
	return FriendshipSchema
}

func (c *Connection) StateMachine() StateMachineConfig {
	if c.Kind == KindReference {
		return StateMachineConfig{ConnectionStatusField: ReferenceTransitions}
	}
	return StateMachineConfig{ConnectionStatusField: FriendshipTransitions}
}

func (c *Connection) StateField(name string) (StateValue, bool) {
	if name != ConnectionStatusField {
		return StateValue{}, false
	}
	return c.Status, true
}

func (c *Connection) SetStateField(name string, v StateValue) {
	if name == ConnectionStatusField {
		c.Status = v
	}
}

// Involves reports whether userID is one of the two parties.
func (c *Connection) Involves(userID string) bool {
	return c.UserFromID == userID || c.UserToID == userID
}

// OtherParty returns the party that is not viewerID.
func (c *Connection) OtherParty(viewerID string) string {
	if c.UserToID == viewerID {
		return c.UserFromID
	}
	return c.UserToID
}

// SerializeFor renders c as seen by viewerID: the counterpart appears as
// user_id, and references expose their type as reference_type.
func (c *Connection) SerializeFor(viewerID string, extra ...string) map[string]any {
	out := Serialize(c, extra...)
	out["user_id"] = c.OtherParty(viewerID)
	if c.Kind == KindReference {
		out["reference_type"] = serializeValue(c.Status, 0)
	}
	return out
}

// ValidFriendshipLevel reports whether level is a known friendship level.
func ValidFriendshipLevel(level string) bool {
	_, ok := FriendshipLevels[level]
	return ok
}

// ValidReferenceType reports whether s is a reference type.
func ValidReferenceType(s State) bool {
	return ReferenceTransitions.Has(s)
}
