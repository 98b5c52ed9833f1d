package topic

import "testing"

// TestCreateTopicName verifies sanitization of country/city pairs and the
// fallback when either component is missing.
func TestCreateTopicName(t *testing.T) {
	tests := []struct {
		name    string
		country string
		city    string
		want    string
	}{
		{
			name:    "simple pair",
			country: "CA",
			city:    "Toronto",
			want:    "CA_Toronto",
		},
		{
			name:    "whitespace stripped",
			country: "US",
			city:    "New York",
			want:    "US_NewYork",
		},
		{
			name:    "reserved characters stripped",
			country: "US",
			city:    "St. Lo[u]is #1$",
			want:    "US_StLouis1",
		},
		{
			name:    "missing city falls back",
			country: "CA",
			city:    "",
			want:    DefaultTopic,
		},
		{
			name:    "missing country falls back",
			country: "",
			city:    "Toronto",
			want:    DefaultTopic,
		},
		{
			name:    "whitespace-only city falls back",
			country: "CA",
			city:    "   ",
			want:    DefaultTopic,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CreateTopicName(tt.country, tt.city); got != tt.want {
				t.Errorf("CreateTopicName(%q, %q) = %q, want %q", tt.country, tt.city, got, tt.want)
			}
		})
	}
}

// TestCheckTopicName verifies the ASCII-safety predicate.
func TestCheckTopicName(t *testing.T) {
	tests := []struct {
		name  string
		topic string
		want  bool
	}{
		{name: "ascii with underscore", topic: "CA_Toronto", want: true},
		{name: "digits allowed", topic: "US_Area51", want: true},
		{name: "empty rejected", topic: "", want: false},
		{name: "non-ascii rejected", topic: "KR_서울", want: false},
		{name: "accented rejected", topic: "CA_Montréal", want: false},
		{name: "space rejected", topic: "US_New York", want: false},
		{name: "dot rejected", topic: "US_St.Louis", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckTopicName(tt.topic); got != tt.want {
				t.Errorf("CheckTopicName(%q) = %v, want %v", tt.topic, got, tt.want)
			}
		})
	}
}

// TestCheckTopicName_RoundTrip verifies that any sanitized ASCII pair passes
// the validity predicate.
func TestCheckTopicName_RoundTrip(t *testing.T) {
	pairs := [][2]string{
		{"CA", "Toronto"},
		{"US", "New York"},
		{"GB", "St. Albans"},
		{"AU", "Surfers Paradise"},
	}
	for _, p := range pairs {
		topic := CreateTopicName(p[0], p[1])
		if !CheckTopicName(topic) {
			t.Errorf("CheckTopicName(CreateTopicName(%q, %q)) = false for %q", p[0], p[1], topic)
		}
	}
}

// TestCheckPathName verifies rejection of reserved storage key characters.
func TestCheckPathName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{name: "plain id", in: "user123", want: true},
		{name: "underscore ok", in: "CA_Toronto", want: true},
		{name: "dot rejected", in: "a.b", want: false},
		{name: "hash rejected", in: "a#b", want: false},
		{name: "dollar rejected", in: "a$b", want: false},
		{name: "brackets rejected", in: "a[b]", want: false},
		{name: "space rejected", in: "a b", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CheckPathName(tt.in); got != tt.want {
				t.Errorf("CheckPathName(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
