package stations

import (
	"strings"

	"github.com/randytsao24/ubikenear/internal/location"
	"github.com/randytsao24/ubikenear/internal/models"
)

// namePrefix is stamped on every 2.0 station name by the Taipei feeds
const namePrefix = "YouBike2.0_"

// Normalize turns raw records into the canonical station set.
//
// Inactive records, records without an id and records without a valid
// coordinate are dropped. When two records share an id the first one wins.
// Source order is kept. If ref is non-nil every station gets a distance,
// otherwise none does.
func Normalize(raw []models.RawStationRecord, ref *models.Coordinate) []models.Station {
	result := make([]models.Station, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for _, rec := range raw {
		station, ok := normalizeRecord(rec)
		if !ok {
			continue
		}
		if _, dup := seen[station.ID]; dup {
			continue
		}
		seen[station.ID] = struct{}{}
		result = append(result, station)
	}

	if ref != nil {
		applyDistances(result, *ref)
	}
	return result
}

// Standardize converts a raw record into the flat shape stored by the fetch
// command. Unlike Normalize it keeps inactive records, but it drops the same
// records without a usable coordinate so a reloaded snapshot matches the
// live feed.
func Standardize(rec models.RawStationRecord) (models.StandardRecord, bool) {
	id := asString(rec.ID)
	if id == "" {
		return models.StandardRecord{}, false
	}
	lat, okLat := asFloat(firstPresent(rec.Lat, rec.Latitude))
	lng, okLng := asFloat(firstPresent(rec.Lng, rec.Longitude))
	if !okLat || !okLng || !(models.Coordinate{Lat: lat, Lng: lng}).Valid() {
		return models.StandardRecord{}, false
	}

	return models.StandardRecord{
		ID:        id,
		Name:      cleanName(asString(rec.Name)),
		Area:      asString(rec.Area),
		Bikes:     asCount(firstPresent(rec.Bikes, rec.RentBikes)),
		Docks:     asCount(firstPresent(rec.Docks, rec.ReturnBays)),
		Lat:       lat,
		Lng:       lng,
		Active:    asString(rec.Active),
		Address:   asString(rec.Address),
		UpdatedAt: asString(rec.UpdatedAt),
		City:      asString(rec.City),
	}, true
}

// StandardizeAll standardizes records in order, keeping the first record
// for each id and skipping records without one.
func StandardizeAll(raw []models.RawStationRecord) []models.StandardRecord {
	out := make([]models.StandardRecord, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, rec := range raw {
		std, ok := Standardize(rec)
		if !ok {
			continue
		}
		if _, dup := seen[std.ID]; dup {
			continue
		}
		seen[std.ID] = struct{}{}
		out = append(out, std)
	}
	return out
}

// WithDistances returns a copy of stations measured from ref. A nil ref
// clears every distance.
func WithDistances(stations []models.Station, ref *models.Coordinate) []models.Station {
	out := make([]models.Station, len(stations))
	copy(out, stations)

	if ref == nil {
		for i := range out {
			out[i].DistanceKm = nil
		}
		return out
	}
	applyDistances(out, *ref)
	return out
}

func applyDistances(stations []models.Station, ref models.Coordinate) {
	for i := range stations {
		d := location.DistanceKm(ref, stations[i].Coordinates)
		stations[i].DistanceKm = &d
	}
}

func normalizeRecord(rec models.RawStationRecord) (models.Station, bool) {
	if !isActive(rec.Active) {
		return models.Station{}, false
	}

	id := asString(rec.ID)
	if id == "" {
		return models.Station{}, false
	}

	lat, okLat := asFloat(firstPresent(rec.Lat, rec.Latitude))
	lng, okLng := asFloat(firstPresent(rec.Lng, rec.Longitude))
	coord := models.Coordinate{Lat: lat, Lng: lng}
	if !okLat || !okLng || !coord.Valid() {
		return models.Station{}, false
	}

	return models.Station{
		ID:             id,
		Name:           cleanName(asString(rec.Name)),
		Coordinates:    coord,
		AvailableBikes: asCount(firstPresent(rec.Bikes, rec.RentBikes)),
		AvailableDocks: asCount(firstPresent(rec.Docks, rec.ReturnBays)),
		Area:           asString(rec.Area),
		City:           asString(rec.City),
		Address:        asString(rec.Address),
		Active:         true,
		UpdatedAt:      asString(rec.UpdatedAt),
	}, true
}

func cleanName(name string) string {
	return strings.TrimSpace(strings.TrimPrefix(name, namePrefix))
}
