package stations

import (
	"sort"
	"strings"

	"github.com/randytsao24/ubikenear/internal/models"
)

// DefaultNearbyCap bounds the nearby list while no filter is active
const DefaultNearbyCap = 10

// ComputeViews splits stations into the favorites and nearby views.
//
// Favorites are filtered by the search text only; city and district narrow
// the nearby list alone. Both lists are ordered by ascending distance when
// every member has one, and keep input order otherwise. With no criteria at
// all the nearby list is cut to nearbyCap (values below 1 mean
// DefaultNearbyCap).
func ComputeViews(stations []models.Station, favorites models.IDSet, criteria models.ViewCriteria, nearbyCap int) models.Views {
	if nearbyCap < 1 {
		nearbyCap = DefaultNearbyCap
	}

	criteria = normalizeCriteria(criteria)
	search := strings.ToLower(criteria.Search)

	views := models.Views{
		Favorites: []models.Station{},
		Nearby:    []models.Station{},
	}

	for _, s := range stations {
		if !matchesSearch(s, search) {
			continue
		}
		if favorites.Has(s.ID) {
			views.Favorites = append(views.Favorites, s)
			continue
		}
		if matchesLocation(s, criteria) {
			views.Nearby = append(views.Nearby, s)
		}
	}

	sortByDistance(views.Favorites)
	sortByDistance(views.Nearby)

	if criteria.IsEmpty() && len(views.Nearby) > nearbyCap {
		views.Nearby = views.Nearby[:nearbyCap]
	}
	return views
}

// Cities returns the distinct non-empty city tags in ascending order
func Cities(stations []models.Station) []string {
	return distinct(stations, func(s models.Station) string { return s.City })
}

// Districts returns the distinct areas in ascending order, limited to city
// when it is non-empty
func Districts(stations []models.Station, city string) []string {
	return distinct(stations, func(s models.Station) string {
		if city != "" && s.City != city {
			return ""
		}
		return s.Area
	})
}

// FindByID looks a station up in the canonical set
func FindByID(stations []models.Station, id string) (models.Station, bool) {
	for _, s := range stations {
		if s.ID == id {
			return s, true
		}
	}
	return models.Station{}, false
}

func normalizeCriteria(c models.ViewCriteria) models.ViewCriteria {
	return models.ViewCriteria{
		Search:   strings.TrimSpace(c.Search),
		City:     strings.TrimSpace(c.City),
		District: strings.TrimSpace(c.District),
	}
}

func matchesSearch(s models.Station, lowered string) bool {
	if lowered == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Name), lowered) ||
		strings.Contains(strings.ToLower(s.Address), lowered) ||
		strings.Contains(strings.ToLower(s.Area), lowered)
}

func matchesLocation(s models.Station, c models.ViewCriteria) bool {
	if c.City != "" && s.City != c.City {
		return false
	}
	if c.District != "" && s.Area != c.District {
		return false
	}
	return true
}

// sortByDistance leaves the slice untouched unless every station carries a
// distance
func sortByDistance(list []models.Station) {
	for _, s := range list {
		if s.DistanceKm == nil {
			return
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return *list[i].DistanceKm < *list[j].DistanceKm
	})
}

func distinct(stations []models.Station, key func(models.Station) string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, s := range stations {
		k := key(s)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
