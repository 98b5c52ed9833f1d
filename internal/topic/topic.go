package topic

import (
	"regexp"
	"strings"
)

// DefaultTopic is used when a location is missing its country or city.
const DefaultTopic = "CA_Toronto"

// strippedChars matches whitespace and the characters the storage layer
// rejects in key names: . # $ [ ]
var strippedChars = regexp.MustCompile(`\s|\.|#|\$|\[|\]`)

// validTopic restricts topics to ASCII letters, digits and underscore.
// Topics double as push subscriber-group identifiers, which reject
// anything else.
var validTopic = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// CreateTopicName derives the storage/push topic for a location as
// country_city with whitespace and reserved key characters stripped.
// Either component missing falls back to DefaultTopic.
func CreateTopicName(country, city string) string {
	if strings.TrimSpace(country) == "" || strings.TrimSpace(city) == "" {
		return DefaultTopic
	}
	return strippedChars.ReplaceAllString(country+"_"+city, "")
}

// CheckTopicName reports whether a topic is safe to use as both a storage
// key and a push topic. Non-ASCII city or country names fail here and are
// never queued.
func CheckTopicName(name string) bool {
	return validTopic.MatchString(name)
}

// CheckPathName reports whether a string is usable as a storage path
// segment, i.e. free of whitespace and the reserved key characters.
func CheckPathName(name string) bool {
	return !strippedChars.MatchString(name)
}
