package domain

import (
	"slices"
	"time"
)

// RSVPStatus is a member's answer to an activity invitation.
type RSVPStatus string

const (
	RSVPYes   RSVPStatus = "yes"
	RSVPMaybe RSVPStatus = "maybe"
	RSVPNo    RSVPStatus = "no"
)

// RSVPStatuses lists the valid answers.
var RSVPStatuses = []RSVPStatus{RSVPYes, RSVPMaybe, RSVPNo}

// ValidRSVPStatus reports whether s is a known answer.
func ValidRSVPStatus(s RSVPStatus) bool { return slices.Contains(RSVPStatuses, s) }

// Length limits of activity text columns.
const (
	MaxActivityTitle    = 128
	MaxActivityLocation = 128
	MaxRSVPComment      = 90
)

// ActivityLeadTime is how far ahead of now an activity must be scheduled.
const ActivityLeadTime = time.Hour

// Activity is a meetup a member organizes in a city.
type Activity struct {
	Expansion

	ID             string
	CreatorID      string
	Creator        *User
	Title          string
	Description    string
	CreatedAt      time.Time
	ScheduledFrom  time.Time
	ScheduledUntil *time.Time
	Location       string
	Coordinates    *Point
	CityID         string
	City           *City
	Version        int

	// Filled by the repository on load.
	Attending map[RSVPStatus]int
}

// ActivitySchema is the serialization registry entry for activities.
var ActivitySchema = RegisterSchema(NewSchema("activity",
	SerializationConfig{
		Exclude: []string{"creator", "city"},
		Force:   []string{"attending_count"},
		Private: []string{"creator_id"},
	},
	[]Field{
		Column("id", func(a *Activity) any { return a.ID }),
		Column("creator_id", func(a *Activity) any { return a.CreatorID }),
		Column("creator", func(a *Activity) any { return Ref(a.Creator) }),
		Column("title", func(a *Activity) any { return a.Title }),
		Column("description", func(a *Activity) any { return a.Description }),
		Column("created_at", func(a *Activity) any { return a.CreatedAt }),
		Column("scheduled_from", func(a *Activity) any { return a.ScheduledFrom }),
		Column("scheduled_until", func(a *Activity) any { return a.ScheduledUntil }),
		Column("location", func(a *Activity) any { return a.Location }),
		Column("location_coordinates", func(a *Activity) any { return a.Coordinates }),
		Column("city_id", func(a *Activity) any { return a.CityID }),
		Column("city", func(a *Activity) any { return Ref(a.City) }),
	},
	Column("attending_count", func(a *Activity) any { return a.AttendingCount() }),
))

func (a *Activity) Schema() *Schema { return ActivitySchema }

// AttendingCount returns the number of answers per RSVP status. Every status
// is present, with zero when nobody gave that answer.
func (a *Activity) AttendingCount() map[string]int {
	out := make(map[string]int, len(RSVPStatuses))
	for _, s := range RSVPStatuses {
		out[string(s)] = a.Attending[s]
	}
	return out
}

// ActivityRSVP is one member's answer to one activity. A member holds at most
// one answer per activity.
type ActivityRSVP struct {
	Expansion

	ID         string
	ActivityID string
	UserID     string
	Status     RSVPStatus
	Comment    string
}

// ActivityRSVPSchema is the serialization registry entry for RSVPs.
var ActivityRSVPSchema = RegisterSchema(NewSchema("activity_rsvp",
	SerializationConfig{Exclude: []string{"id"}},
	[]Field{
		Column("id", func(r *ActivityRSVP) any { return r.ID }),
		Column("activity_id", func(r *ActivityRSVP) any { return r.ActivityID }),
		Column("user_id", func(r *ActivityRSVP) any { return r.UserID }),
		Column("rsvp_status", func(r *ActivityRSVP) any { return string(r.Status) }),
		Column("comment", func(r *ActivityRSVP) any { return nullable(r.Comment) }),
	},
))

func (r *ActivityRSVP) Schema() *Schema { return ActivityRSVPSchema }
