// Package models defines shared data types
package models

import (
	"math"
	"sort"
	"time"
)

// Coordinate is a latitude/longitude pair in degrees
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether both components are finite and inside their ranges
func (c Coordinate) Valid() bool {
	if math.IsNaN(c.Lat) || math.IsInf(c.Lat, 0) || math.IsNaN(c.Lng) || math.IsInf(c.Lng, 0) {
		return false
	}
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// RawStationRecord is a station as published by an upstream feed.
// Fields arrive as numbers or strings depending on the feed, so they are
// decoded into any and coerced by the normalizer.
type RawStationRecord struct {
	ID         any `json:"sno"`
	Name       any `json:"sna"`
	Lat        any `json:"lat"`
	Latitude   any `json:"latitude"`
	Lng        any `json:"lng"`
	Longitude  any `json:"longitude"`
	Bikes      any `json:"sbi"`
	RentBikes  any `json:"available_rent_bikes"`
	Docks      any `json:"bemp"`
	ReturnBays any `json:"available_return_bikes"`
	Area       any `json:"sarea"`
	City       any `json:"city"`
	Active     any `json:"act"`
	UpdatedAt  any `json:"mday"`
	Address    any `json:"ar"`
}

// Station is a normalized bike-share station
type Station struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Coordinates    Coordinate `json:"coordinates"`
	AvailableBikes int        `json:"available_bikes"`
	AvailableDocks int        `json:"available_docks"`
	Area           string     `json:"area"`
	City           string     `json:"city"`
	Address        string     `json:"address,omitempty"`
	Active         bool       `json:"active"`
	UpdatedAt      string     `json:"updated_at,omitempty"`
	DistanceKm     *float64   `json:"distance_km"`
}

// ViewCriteria holds the user-supplied filters for one render
type ViewCriteria struct {
	Search   string `json:"search"`
	City     string `json:"city"`
	District string `json:"district"`
}

// IsEmpty returns true when no filter is active
func (c ViewCriteria) IsEmpty() bool {
	return c.Search == "" && c.City == "" && c.District == ""
}

// Views are the two ordered projections of the canonical station set
type Views struct {
	Favorites []Station `json:"favorites"`
	Nearby    []Station `json:"nearby"`
}

// Status is the single user-facing status surface
type Status struct {
	Message      string      `json:"message"`
	IsError      bool        `json:"is_error"`
	Code         string      `json:"code,omitempty"`
	StationCount int         `json:"station_count"`
	Reference    *Coordinate `json:"reference,omitempty"`
	RefreshedAt  time.Time   `json:"refreshed_at"`
	Generation   uint64      `json:"generation"`
}

// StandardRecord is the flat shape written by the data fetch command
type StandardRecord struct {
	ID        string  `json:"sno"`
	Name      string  `json:"sna"`
	Area      string  `json:"sarea"`
	Bikes     int     `json:"sbi"`
	Docks     int     `json:"bemp"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Active    string  `json:"act"`
	Address   string  `json:"ar"`
	UpdatedAt string  `json:"mday"`
	City      string  `json:"city,omitempty"`
}

// IDSet is a set of station ids
type IDSet map[string]struct{}

// NewIDSet builds a set from ids
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

// Has reports membership; a nil set is empty
func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the members in ascending order
func (s IDSet) Sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone returns an independent copy
func (s IDSet) Clone() IDSet {
	c := make(IDSet, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}
