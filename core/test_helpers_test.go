package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type testConnectionFactory struct {
	providerID string
}

func (f testConnectionFactory) ProviderID() string { return f.providerID }

func (f testConnectionFactory) CreateConnection(data ConnectionData) (Connection, error) {
	if data.ProviderID != f.providerID {
		return Connection{}, fmt.Errorf("test factory: provider mismatch: %s", data.ProviderID)
	}
	return Connection{
		Key:          data.Key(),
		DisplayName:  data.DisplayName,
		ProfileURL:   data.ProfileURL,
		ImageURL:     data.ImageURL,
		AccessToken:  data.AccessToken,
		Secret:       data.Secret,
		RefreshToken: data.RefreshToken,
		ExpireTime:   data.ExpireTime,
	}, nil
}

func newTestLocator(providerIDs ...string) *ConnectionFactoryRegistry {
	registry := NewConnectionFactoryRegistry()
	for _, id := range providerIDs {
		if err := registry.Register(testConnectionFactory{providerID: id}); err != nil {
			panic(err)
		}
	}
	return registry
}

func testConnection(providerID, providerUserID string) Connection {
	expires := time.Now().UTC().Add(time.Hour)
	return Connection{
		Key:         NewConnectionKey(providerID, providerUserID),
		DisplayName: "@" + providerUserID,
		ProfileURL:  "https://" + providerID + ".example.com/" + providerUserID,
		ImageURL:    "https://" + providerID + ".example.com/" + providerUserID + ".png",
		AccessToken: "access-" + providerUserID,
		Secret:      "secret-" + providerUserID,
		ExpireTime:  &expires,
	}
}

type recordingSignUp struct {
	mu     sync.Mutex
	userID string
	calls  int
}

func (s *recordingSignUp) ExecuteSignUp(_ context.Context, _ Connection) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.userID, nil
}

func (s *recordingSignUp) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type capturingEventSink struct {
	mu     sync.Mutex
	events []ConnectionEvent
}

func (s *capturingEventSink) Record(_ context.Context, event ConnectionEvent) error {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
	return nil
}

func (s *capturingEventSink) eventTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, 0, len(s.events))
	for _, event := range s.events {
		types = append(types, event.EventType)
	}
	return types
}

type mapRawLoader struct {
	values map[string]any
}

func (l mapRawLoader) LoadRaw(context.Context) (map[string]any, error) {
	out := make(map[string]any, len(l.values))
	for key, value := range l.values {
		out[key] = value
	}
	return out, nil
}

func containsString(list []string, want string) bool {
	for _, item := range list {
		if strings.TrimSpace(item) == want {
			return true
		}
	}
	return false
}
