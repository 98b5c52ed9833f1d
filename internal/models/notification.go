package models

// MessageType identifies which threshold rule produced a notification.
type MessageType string

const (
	MessageTypeUV   MessageType = "uvForecast"
	MessageTypeRain MessageType = "rainForecast"
)

// Valid reports whether m is one of the known message types.
func (m MessageType) Valid() bool {
	return m == MessageTypeUV || m == MessageTypeRain
}

// NotificationCandidate is the ephemeral result of evaluating one complete
// location record against a threshold rule. It exists only for the duration
// of one evaluation pass; qualifying candidates become queue entries and the
// whole set is recorded in the audit snapshot for that tick.
//
// All forecast fields hold today's (index 0) values. On the rain path, Icon
// is already first-letter-capitalized and TempMax/TempMin are already
// converted to the country's display unit.
type NotificationCandidate struct {
	Topic           string      `json:"topic"`
	MessageType     MessageType `json:"messageType"`
	Country         string      `json:"country"`
	City            string      `json:"city"`
	TZ              string      `json:"tz"`
	TZOffset        float64     `json:"tzOffset"`
	CurrentTime     int64       `json:"currentTime"`
	UVITime         int64       `json:"uviTime"`
	UVIMax          float64     `json:"uviMax"`
	ForecastSummary string      `json:"forecastSummary"`
	Cloudiness      float64     `json:"cloudiness"`
	Icon            string      `json:"icon"`
	TempMax         float64     `json:"tempMax"`
	TempMin         float64     `json:"tempMin"`
	UnitStr         string      `json:"unitStr"`
}

// QueueEntry is a pending notification staged under its topic. Its mere
// existence is the delivery trigger; the dispatcher deletes it
// unconditionally after acting on it.
//
// UVIMax, TempMax and TempMin are pointers because the dispatcher discards
// entries that lack any of them, and a legitimate zero must not look like
// absence after a round trip through JSON.
type QueueEntry struct {
	Topic           string      `json:"topic"`
	MessageType     MessageType `json:"messageType"`
	Country         string      `json:"country"`
	City            string      `json:"city"`
	UVIMax          *float64    `json:"uviMax,omitempty"`
	UVITime         int64       `json:"uviTime"`
	Offset          int         `json:"offset"`
	ForecastSummary string      `json:"forecastSummary"`
	Cloudiness      float64     `json:"cloudiness"`
	Icon            string      `json:"icon"`
	TempMax         *float64    `json:"tempMax,omitempty"`
	TempMin         *float64    `json:"tempMin,omitempty"`
	UnitStr         string      `json:"unitStr"`
}

// EntryFromCandidate builds the queue entry staged for a qualifying
// candidate. The candidate's tz and currentTime are dropped; the partition
// offset is carried so the dispatcher can render local wall-clock times.
func EntryFromCandidate(c NotificationCandidate, offset int) QueueEntry {
	uviMax := c.UVIMax
	tempMax := c.TempMax
	tempMin := c.TempMin
	return QueueEntry{
		Topic:           c.Topic,
		MessageType:     c.MessageType,
		Country:         c.Country,
		City:            c.City,
		UVIMax:          &uviMax,
		UVITime:         c.UVITime,
		Offset:          offset,
		ForecastSummary: c.ForecastSummary,
		Cloudiness:      c.Cloudiness,
		Icon:            c.Icon,
		TempMax:         &tempMax,
		TempMin:         &tempMin,
		UnitStr:         c.UnitStr,
	}
}
