package api

import (
	"net/url"
	"strconv"
	"time"
)

// User is the identity persisted in the user_data slot.
type User struct {
	ID             string         `json:"id"`
	Email          string         `json:"email"`
	Name           string         `json:"name,omitempty"`
	EmailConfirmed bool           `json:"emailConfirmed,omitempty"`
	Claims         map[string]any `json:"claims,omitempty"`
}

// Profile is the public profile of a jumper. JumpCount is derived from the
// logbook and maintained server-side.
type Profile struct {
	UserID        string    `json:"userId"`
	Name          string    `json:"name"`
	Bio           string    `json:"bio,omitempty"`
	HomeDropzone  string    `json:"homeDropzone,omitempty"`
	LicenseNumber string    `json:"licenseNumber,omitempty"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	JumpCount     int       `json:"jumpCount"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// ProfileUpdate is a PATCH body; nil fields are left untouched.
type ProfileUpdate struct {
	Name          *string `json:"name,omitempty" validate:"omitempty,min=1,max=80"`
	Bio           *string `json:"bio,omitempty" validate:"omitempty,max=500"`
	HomeDropzone  *string `json:"homeDropzone,omitempty"`
	LicenseNumber *string `json:"licenseNumber,omitempty"`
	AvatarURL     *string `json:"avatarUrl,omitempty" validate:"omitempty,url"`
}

// Location is a dropzone shown on the discovery map.
type Location struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Country     string  `json:"country"`
	Type        string  `json:"type,omitempty"`
	Description string  `json:"description,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	IsSaved     bool    `json:"isSaved"`
}

// LocationFilter narrows the location list. It is part of the cache key, so
// it must stay a plain comparable value.
type LocationFilter struct {
	Country string `json:"country,omitempty"`
	Type    string `json:"type,omitempty"`
	Search  string `json:"search,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (f LocationFilter) Query() url.Values {
	q := url.Values{}
	if f.Country != "" {
		q.Set("country", f.Country)
	}
	if f.Type != "" {
		q.Set("type", f.Type)
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// LocationSubmission is a user-proposed location awaiting moderation.
type LocationSubmission struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Website   string    `json:"website,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

type NewLocationSubmission struct {
	Name      string  `json:"name" validate:"required,max=120"`
	Country   string  `json:"country" validate:"required"`
	Latitude  float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude float64 `json:"longitude" validate:"gte=-180,lte=180"`
	Website   string  `json:"website,omitempty" validate:"omitempty,url"`
}

// LogbookEntry is one logged jump.
type LogbookEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId"`
	JumpNumber      int       `json:"jumpNumber"`
	Date            time.Time `json:"date"`
	LocationID      string    `json:"locationId,omitempty"`
	Aircraft        string    `json:"aircraft,omitempty"`
	ExitAltitude    int       `json:"exitAltitude,omitempty"`
	FreefallSeconds int       `json:"freefallSeconds,omitempty"`
	Notes           string    `json:"notes,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

type NewLogbookEntry struct {
	JumpNumber      int       `json:"jumpNumber" validate:"gte=1"`
	Date            time.Time `json:"date" validate:"required"`
	LocationID      string    `json:"locationId,omitempty"`
	Aircraft        string    `json:"aircraft,omitempty"`
	ExitAltitude    int       `json:"exitAltitude,omitempty" validate:"gte=0"`
	FreefallSeconds int       `json:"freefallSeconds,omitempty" validate:"gte=0"`
	Notes           string    `json:"notes,omitempty" validate:"max=2000"`
}
