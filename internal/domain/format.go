package domain

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Wire formats shared by serialization and storage.
const (
	DateTimeLayout = "2006-01-02T15:04:05"
	DateLayout     = "2006-01-02"
	ClockLayout    = "15:04:05"
)

// FormatDateTime renders t in UTC without zone suffix.
func FormatDateTime(t time.Time) string {
	return t.UTC().Format(DateTimeLayout)
}

// ParseDateTime parses the DateTimeLayout wire form as UTC.
func ParseDateTime(s string) (time.Time, error) {
	t, err := time.Parse(DateTimeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing datetime %q: %w", s, err)
	}
	return t, nil
}

// Date is a calendar date without time of day.
type Date struct {
	t time.Time
}

// NewDate returns the date y-m-d.
func NewDate(y int, m time.Month, d int) Date {
	return Date{t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return Date{t: t}, nil
}

func (d Date) Year() int          { return d.t.Year() }
func (d Date) Month() time.Month  { return d.t.Month() }
func (d Date) Day() int           { return d.t.Day() }
func (d Date) IsZero() bool       { return d.t.IsZero() }
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }
func (d Date) After(o Date) bool  { return d.t.After(o.t) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Value stores the date as YYYY-MM-DD text.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Scan reads a YYYY-MM-DD column.
func (d *Date) Scan(src any) error {
	switch s := src.(type) {
	case nil:
		*d = Date{}
		return nil
	case string:
		parsed, err := ParseDate(s)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	case []byte:
		return d.Scan(string(s))
	case time.Time:
		*d = DateOf(s)
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

// Clock is a time of day.
type Clock struct {
	t time.Time
}

// NewClock returns the time of day h:m:s.
func NewClock(h, m, s int) Clock {
	return Clock{t: time.Date(0, 1, 1, h, m, s, 0, time.UTC)}
}

func (c Clock) String() string {
	return c.t.Format(ClockLayout)
}

// Point is a geographic coordinate.
type Point struct {
	Lon float64
	Lat float64
}

// Coords returns the serialized [longitude, latitude] pair.
func (p Point) Coords() []float64 {
	return []float64{p.Lon, p.Lat}
}

// Value stores the point as WKT, longitude first.
func (p Point) Value() (driver.Value, error) {
	return fmt.Sprintf("POINT(%g %g)", p.Lon, p.Lat), nil
}

// Scan reads a WKT POINT column.
func (p *Point) Scan(src any) error {
	var s string
	switch v := src.(type) {
	case nil:
		*p = Point{}
		return nil
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return fmt.Errorf("cannot scan %T into Point", src)
	}
	var lon, lat float64
	if _, err := fmt.Sscanf(s, "POINT(%g %g)", &lon, &lat); err != nil {
		return fmt.Errorf("parsing point %q: %w", s, err)
	}
	*p = Point{Lon: lon, Lat: lat}
	return nil
}
