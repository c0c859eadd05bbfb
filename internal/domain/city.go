package domain

// City is a locality members live in and hospitality is offered from.
type City struct {
	Expansion

	ID             string
	Name           string
	Slug           string
	Coordinates    Point
	Timezone       int
	CountryCode    string
	Rating         float64
	WikiName       string
	AdditionalData map[string]string
}

// CitySchema is the serialization registry entry for cities.
var CitySchema = RegisterSchema(NewSchema("city",
	SerializationConfig{
		Exclude: []string{"coordinates", "wikiname", "additional_data"},
		Force:   []string{"latitude", "longitude"},
	},
	[]Field{
		Column("id", func(c *City) any { return c.ID }),
		Column("name", func(c *City) any { return c.Name }),
		Column("slug", func(c *City) any { return c.Slug }),
		Column("coordinates", func(c *City) any { return c.Coordinates }),
		Column("timezone", func(c *City) any { return c.Timezone }),
		Column("country_code", func(c *City) any { return c.CountryCode }),
		Column("rating", func(c *City) any { return c.Rating }),
		Column("wikiname", func(c *City) any { return c.WikiName }),
		Column("additional_data", func(c *City) any { return c.AdditionalData }),
	},
	Column("latitude", func(c *City) any { return c.Coordinates.Lat }),
	Column("longitude", func(c *City) any { return c.Coordinates.Lon }),
))

func (c *City) Schema() *Schema { return CitySchema }
