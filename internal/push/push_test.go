package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClientRequiresServerKey(t *testing.T) {
	if _, err := NewClient("", "http://example.com", "", time.Second); !errors.Is(err, ErrInvalidServerKey) {
		t.Fatalf("got %v, want ErrInvalidServerKey", err)
	}
}

func TestSendToTopicPayload(t *testing.T) {
	var got pushRequest
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, err := NewClient("server-key", server.URL, "com.example.sunapp", time.Second)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	n := Notification{Title: "High Risk of Sunburn Today.", Body: "Take care."}
	if err := c.SendToTopic(context.Background(), "CA_Toronto", n); err != nil {
		t.Fatalf("SendToTopic: %v", err)
	}

	if auth != "key=server-key" {
		t.Errorf("Authorization = %q", auth)
	}
	if got.To != "/topics/CA_Toronto" {
		t.Errorf("to = %q", got.To)
	}
	if got.Priority != "high" {
		t.Errorf("priority = %q", got.Priority)
	}
	if got.TimeToLive != 86400 {
		t.Errorf("time_to_live = %d", got.TimeToLive)
	}
	if got.RestrictedPackageName != "com.example.sunapp" {
		t.Errorf("restricted_package_name = %q", got.RestrictedPackageName)
	}
	if got.Notification.Title != n.Title || got.Notification.Body != n.Body {
		t.Errorf("notification = %+v", got.Notification)
	}
}

func TestSendToTopicEmptyTitleOmitted(t *testing.T) {
	var raw map[string]json.RawMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		if err := json.Unmarshal(body["notification"], &raw); err != nil {
			t.Errorf("decode notification: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c, _ := NewClient("server-key", server.URL, "", time.Second)
	if err := c.SendToTopic(context.Background(), "CA_Toronto", Notification{Body: "Stay dry."}); err != nil {
		t.Fatalf("SendToTopic: %v", err)
	}
	if _, ok := raw["title"]; ok {
		t.Error("empty title should be omitted from the payload")
	}
}

func TestSendToTopicErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidServerKey},
		{"server error", http.StatusInternalServerError, ErrPushRejected},
		{"bad request", http.StatusBadRequest, ErrPushRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c, _ := NewClient("server-key", server.URL, "", time.Second)
			err := c.SendToTopic(context.Background(), "CA_Toronto", Notification{Body: "x"})
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("got %v, want %v", err, tt.wantErr)
			}
		})
	}
}
