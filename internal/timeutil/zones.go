package timeutil

// Region groups the timezones offered in the settings picker.
type Region struct {
	Key   string
	Name  string
	Zones []Zone
}

type Zone struct {
	ID    string // IANA name
	Label string
}

// Regions is the curated picker list. It is deliberately short: users who
// need an unlisted zone can still receive one from the booking system.
var Regions = []Region{
	{Key: "europe", Name: "Europe", Zones: []Zone{
		{"Europe/London", "London (UTC+0)"},
		{"Europe/Paris", "Paris (UTC+1)"},
		{"Europe/Berlin", "Berlin (UTC+1)"},
		{"Europe/Kyiv", "Kyiv (UTC+2)"},
		{"Europe/Moscow", "Moscow (UTC+3)"},
		{"Europe/Istanbul", "Istanbul (UTC+3)"},
	}},
	{Key: "americas", Name: "Americas", Zones: []Zone{
		{"America/New_York", "New York (UTC-5)"},
		{"America/Chicago", "Chicago (UTC-6)"},
		{"America/Denver", "Denver (UTC-7)"},
		{"America/Los_Angeles", "Los Angeles (UTC-8)"},
		{"America/Sao_Paulo", "Sao Paulo (UTC-3)"},
	}},
	{Key: "asia", Name: "Asia", Zones: []Zone{
		{"Asia/Dubai", "Dubai (UTC+4)"},
		{"Asia/Almaty", "Almaty (UTC+6)"},
		{"Asia/Bangkok", "Bangkok (UTC+7)"},
		{"Asia/Shanghai", "Shanghai (UTC+8)"},
		{"Asia/Tokyo", "Tokyo (UTC+9)"},
	}},
	{Key: "pacific", Name: "Pacific", Zones: []Zone{
		{"Australia/Sydney", "Sydney (UTC+11)"},
		{"Pacific/Auckland", "Auckland (UTC+13)"},
	}},
}

// RegionByKey returns the picker region with the given key.
func RegionByKey(key string) (Region, bool) {
	for _, r := range Regions {
		if r.Key == key {
			return r, true
		}
	}
	return Region{}, false
}

// ZoneLabel returns the picker label for an IANA zone, or the zone id itself
// when it is not in the curated list.
func ZoneLabel(id string) string {
	for _, r := range Regions {
		for _, z := range r.Zones {
			if z.ID == id {
				return z.Label
			}
		}
	}
	return id
}

// KnownZone reports whether id is in the curated picker list.
func KnownZone(id string) bool {
	for _, r := range Regions {
		for _, z := range r.Zones {
			if z.ID == id {
				return true
			}
		}
	}
	return false
}
