package models

import "time"

// Unit is the unit of measure for a usage reading.
type Unit string

const (
	UnitKWh   Unit = "kWh"
	UnitTherm Unit = "therm"
)

// Credentials are the portal sign-in credentials. They are supplied by the
// caller per fetch and are never persisted or logged by the fetch path.
type Credentials struct {
	Username string
	Password string
}

// UsageRecord represents a single day's electricity usage as read from the
// portal. Records are immutable once produced; a fetch yields them ordered
// by date ascending with no duplicate dates.
type UsageRecord struct {
	Date time.Time `json:"date"`
	KWh  float64   `json:"kwh"`
	Unit Unit      `json:"unit"`
	Cost float64   `json:"cost,omitempty"` // dollars, 0 when the portal omits it
}

// DateKey returns the record's date formatted for keying and storage.
func (r UsageRecord) DateKey() string {
	return r.Date.Format("2006-01-02")
}
