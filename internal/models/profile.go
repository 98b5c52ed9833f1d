package models

// Profile is a user profile as posted to the upsert endpoint. Only country,
// city, tzOffset, topicLocation and the coordinates matter to the pipeline;
// the rest is stored verbatim for the analytics surface.
type Profile struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	Account        string  `json:"accountType"`
	Country        string  `json:"country"`
	City           string  `json:"city"`
	TZOffset       float64 `json:"tzOffset"`
	TopicLocation  string  `json:"topicLocation"`
	Lat            float64 `json:"lat"`
	Lng            float64 `json:"lng"`
	AppOpened      int     `json:"appOpened"`
	AppOpenedEpoch int64   `json:"appOpenedEpoch"`
	AppRated       int     `json:"appRated"`
	SkinType       string  `json:"skintype"`
	Gender         string  `json:"gender"`
	Birthday       string  `json:"birthday"`
	Height         float64 `json:"height"`
	Weight         float64 `json:"weight"`
}
