package models

// ForecastDays is the number of daily entries a provider refresh carries,
// index 0 being today.
const ForecastDays = 5

// Location is a registered location record, stored under its rounded
// timezone-offset partition and keyed by its sanitized topic name.
//
// The five forecast slices are either nil (never refreshed) or exactly
// ForecastDays long. TZOffset and TZOffsetRound are pointers because their
// absence is meaningful: records created by the profile trigger have an
// offset but no forecast payload, and older records may predate the
// rounded-offset field entirely.
type Location struct {
	Topic   string  `json:"topic"`
	Country string  `json:"country"`
	City    string  `json:"city"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`

	TZ            string   `json:"tz,omitempty"`
	TZOffset      *float64 `json:"tzOffset,omitempty"`
	TZOffsetRound *int     `json:"tzOffsetRound,omitempty"`

	// CurrentTime is the provider-reported epoch of the last refresh.
	// Zero means the record has never been refreshed.
	CurrentTime int64 `json:"currentTime,omitempty"`

	UVITime         []int64   `json:"uviTime,omitempty"`
	UVIMax          []float64 `json:"uviMax,omitempty"`
	ForecastSummary []string  `json:"forecastSummary,omitempty"`
	Cloudiness      []float64 `json:"cloudiness,omitempty"`
	Icon            []string  `json:"icon,omitempty"`
	TempMax         []float64 `json:"tempMax,omitempty"`
	TempMin         []float64 `json:"tempMin,omitempty"`

	// LastUpdated is set when the profile trigger creates the record.
	LastUpdated int64 `json:"lastUpdated,omitempty"`
}

// Complete reports whether the record carries a full forecast payload and a
// rounded offset. Only complete records are eligible for threshold
// evaluation.
func (l Location) Complete() bool {
	return len(l.UVITime) == ForecastDays &&
		len(l.UVIMax) == ForecastDays &&
		len(l.ForecastSummary) == ForecastDays &&
		len(l.Cloudiness) == ForecastDays &&
		len(l.Icon) == ForecastDays &&
		len(l.TempMax) == ForecastDays &&
		len(l.TempMin) == ForecastDays &&
		l.TZOffsetRound != nil
}

// Cursor is the persisted pagination state for one partition's incremental
// crawl. OffsetCount never exceeds TotalCount; reaching TotalCount deletes
// the cursor so the next tick restarts a full pass.
type Cursor struct {
	LastKeyName string `json:"lastKeyName"`
	OffsetCount int    `json:"offsetCount"`
	TotalCount  int    `json:"totalCount"`
}

// ForecastRefresh is the slice of a provider response the sync job persists
// onto a Location record. All slices are exactly ForecastDays long.
type ForecastRefresh struct {
	TZ            string
	TZOffset      float64
	TZOffsetRound int
	CurrentTime   int64

	UVITime         []int64
	UVIMax          []float64
	ForecastSummary []string
	Cloudiness      []float64
	Icon            []string
	TempMax         []float64
	TempMin         []float64
}
