// Package stations turns raw bike-share feeds into canonical stations and
// derives the favorites and nearby views from them
package stations

import (
	"bytes"
	"encoding/json"
	"sort"

	"github.com/randytsao24/ubikenear/internal/models"
)

// envelopeKeys are the payload fields checked, in order, when a feed wraps
// its station array in an object
var envelopeKeys = []string{"retVal", "data"}

// DecodeRecords parses a feed body. It accepts a bare array of records or an
// envelope object whose payload field holds the array (or an object keyed by
// station id). Anything else yields an empty slice. Elements that are not
// objects are skipped.
func DecodeRecords(body []byte) []models.RawStationRecord {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return []models.RawStationRecord{}
	}

	switch body[0] {
	case '[':
		return decodeArray(body)
	case '{':
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(body, &envelope); err != nil {
			return []models.RawStationRecord{}
		}
		for _, key := range envelopeKeys {
			payload, ok := envelope[key]
			if !ok {
				continue
			}
			payload = bytes.TrimSpace(payload)
			if len(payload) > 0 && payload[0] == '{' {
				return decodeKeyed(payload)
			}
			return decodeArray(payload)
		}
	}
	return []models.RawStationRecord{}
}

func decodeArray(body []byte) []models.RawStationRecord {
	var elems []json.RawMessage
	if err := json.Unmarshal(body, &elems); err != nil {
		return []models.RawStationRecord{}
	}

	records := make([]models.RawStationRecord, 0, len(elems))
	for _, elem := range elems {
		if rec, ok := decodeRecord(elem); ok {
			records = append(records, rec)
		}
	}
	return records
}

// decodeKeyed handles the older {"retVal": {"0001": {...}}} layout. Keys are
// visited in sorted order so the result is deterministic.
func decodeKeyed(body []byte) []models.RawStationRecord {
	var keyed map[string]json.RawMessage
	if err := json.Unmarshal(body, &keyed); err != nil {
		return []models.RawStationRecord{}
	}

	keys := make([]string, 0, len(keyed))
	for k := range keyed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([]models.RawStationRecord, 0, len(keys))
	for _, k := range keys {
		rec, ok := decodeRecord(keyed[k])
		if !ok {
			continue
		}
		if rec.ID == nil {
			rec.ID = k
		}
		records = append(records, rec)
	}
	return records
}

func decodeRecord(raw json.RawMessage) (models.RawStationRecord, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '{' {
		return models.RawStationRecord{}, false
	}
	var rec models.RawStationRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return models.RawStationRecord{}, false
	}
	return rec, true
}
