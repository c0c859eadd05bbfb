package domain

import (
	"slices"
	"time"
)

// Gender follows ISO/IEC 5218.
type Gender string

const (
	GenderNotKnown      Gender = "0"
	GenderFemale        Gender = "1"
	GenderMale          Gender = "2"
	GenderNotApplicable Gender = "9"
)

// Genders lists the valid gender codes.
var Genders = []Gender{GenderNotKnown, GenderFemale, GenderMale, GenderNotApplicable}

// HostAvailability describes whether a member can host travellers.
type HostAvailability string

const (
	HostYes       HostAvailability = "yes"
	HostNo        HostAvailability = "no"
	HostMaybe     HostAvailability = "maybe"
	HostSometimes HostAvailability = "sometimes"
	HostCoffee    HostAvailability = "coffee"
)

// HostAvailabilities lists the valid can_host values.
var HostAvailabilities = []HostAvailability{HostYes, HostNo, HostMaybe, HostSometimes, HostCoffee}

// ValidGender reports whether g is a known code.
func ValidGender(g Gender) bool { return slices.Contains(Genders, g) }

// ValidHostAvailability reports whether h is a known value.
func ValidHostAvailability(h HostAvailability) bool { return slices.Contains(HostAvailabilities, h) }

// User is a platform member.
type User struct {
	Expansion

	ID           string
	FirstName    string
	LastName     string
	Email        string
	Gender       Gender
	BirthDate    Date
	CityID       string
	City         *City
	CanHost      HostAvailability
	PasswordHash string
	Role         string
	CreatedAt    time.Time

	// Filled by the repository on load.
	FriendCount    int
	ReferenceCount int
}

// UserSchema is the serialization registry entry for users.
var UserSchema = RegisterSchema(NewSchema("user",
	SerializationConfig{
		Exclude: []string{"city"},
		Force:   []string{"age", "country_code", "n_friends", "n_refs"},
		Private: []string{"password_hash", "role"},
	},
	[]Field{
		Column("id", func(u *User) any { return u.ID }),
		Column("first_name", func(u *User) any { return u.FirstName }),
		Column("last_name", func(u *User) any { return u.LastName }),
		Column("email", func(u *User) any { return u.Email }),
		Column("gender", func(u *User) any { return string(u.Gender) }),
		Column("birth_date", func(u *User) any { return u.BirthDate }),
		Column("city_id", func(u *User) any { return nullable(u.CityID) }),
		Column("city", func(u *User) any { return Ref(u.City) }),
		Column("can_host", func(u *User) any { return string(u.CanHost) }),
		Column("password_hash", func(u *User) any { return u.PasswordHash }),
		Column("role", func(u *User) any { return u.Role }),
		Column("created_at", func(u *User) any { return u.CreatedAt }),
	},
	Column("age", func(u *User) any { return u.AgeAt(time.Now()) }),
	Column("country_code", func(u *User) any { return u.CountryCode() }),
	Column("n_friends", func(u *User) any { return u.FriendCount }),
	Column("n_refs", func(u *User) any { return u.ReferenceCount }),
))

func (u *User) Schema() *Schema { return UserSchema }

// AgeAt returns the user's age in whole years on the date of now. A Feb 29
// birthday counts as Feb 28 in non-leap years.
func (u *User) AgeAt(now time.Time) int {
	if u.BirthDate.IsZero() {
		return 0
	}
	today := DateOf(now)
	day := u.BirthDate.Day()
	if u.BirthDate.Month() == time.February && day == 29 && !isLeap(today.Year()) {
		day = 28
	}
	birthday := NewDate(today.Year(), u.BirthDate.Month(), day)
	age := today.Year() - u.BirthDate.Year()
	if birthday.After(today) {
		age--
	}
	return age
}

// CountryCode returns the ISO 3166-1 alpha-3 code of the user's city, or nil
// when no city is loaded.
func (u *User) CountryCode() any {
	if u.City == nil {
		return nil
	}
	return u.City.CountryCode
}

func isLeap(y int) bool {
	return y%4 == 0 && (y%100 != 0 || y%400 == 0)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
