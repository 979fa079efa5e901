package command

import (
	"context"
	"errors"
	"testing"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-connect/core"
)

type stubMutatingService struct {
	addFn               func(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error)
	updateFn            func(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error)
	removeFn            func(ctx context.Context, userID string, key core.ConnectionKey) error
	removeConnectionsFn func(ctx context.Context, userID string, providerID string) error
}

func (s stubMutatingService) AddConnection(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error) {
	if s.addFn == nil {
		return core.Connection{}, errors.New("stub: add not wired")
	}
	return s.addFn(ctx, userID, data)
}

func (s stubMutatingService) UpdateConnection(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error) {
	if s.updateFn == nil {
		return core.Connection{}, errors.New("stub: update not wired")
	}
	return s.updateFn(ctx, userID, data)
}

func (s stubMutatingService) RemoveConnection(ctx context.Context, userID string, key core.ConnectionKey) error {
	if s.removeFn == nil {
		return errors.New("stub: remove not wired")
	}
	return s.removeFn(ctx, userID, key)
}

func (s stubMutatingService) RemoveConnections(ctx context.Context, userID string, providerID string) error {
	if s.removeConnectionsFn == nil {
		return errors.New("stub: remove connections not wired")
	}
	return s.removeConnectionsFn(ctx, userID, providerID)
}

func TestAddConnectionCommand_ExecuteDelegatesAndStoresResult(t *testing.T) {
	expected := core.Connection{
		Key:  core.ConnectionKey{ProviderID: "github", ProviderUserID: "octo_1"},
		Rank: 1,
	}
	called := false

	svc := stubMutatingService{
		addFn: func(_ context.Context, userID string, data core.ConnectionData) (core.Connection, error) {
			called = true
			if userID != "joe" {
				t.Fatalf("expected user joe, got %q", userID)
			}
			if data.ProviderID != "github" {
				t.Fatalf("expected provider github, got %q", data.ProviderID)
			}
			return expected, nil
		},
	}

	cmd := NewAddConnectionCommand(svc)
	collector := gocmd.NewResult[core.Connection]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)

	err := cmd.Execute(ctx, AddConnectionMessage{
		UserID: "joe",
		Data:   core.ConnectionData{ProviderID: "github", ProviderUserID: "octo_1"},
	})
	if err != nil {
		t.Fatalf("execute add connection: %v", err)
	}
	if !called {
		t.Fatalf("expected add connection invocation")
	}
	result, ok := collector.Load()
	if !ok {
		t.Fatalf("expected result to be stored")
	}
	if result.Key != expected.Key || result.Rank != expected.Rank {
		t.Fatalf("unexpected result: %#v", result)
	}
}

func TestMutationCommands_DelegateToService(t *testing.T) {
	t.Run("update connection", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			updateFn: func(_ context.Context, userID string, data core.ConnectionData) (core.Connection, error) {
				called = true
				if userID != "joe" || data.DisplayName != "Octo Prime" {
					t.Fatalf("unexpected update payload: %q %q", userID, data.DisplayName)
				}
				return core.Connection{Key: data.Key()}, nil
			},
		}
		cmd := NewUpdateConnectionCommand(svc)
		err := cmd.Execute(context.Background(), UpdateConnectionMessage{
			UserID: "joe",
			Data: core.ConnectionData{
				ProviderID:     "github",
				ProviderUserID: "octo_1",
				DisplayName:    "Octo Prime",
			},
		})
		if err != nil {
			t.Fatalf("execute update connection: %v", err)
		}
		if !called {
			t.Fatalf("expected update invocation")
		}
	})

	t.Run("remove connection", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			removeFn: func(_ context.Context, userID string, key core.ConnectionKey) error {
				called = true
				if userID != "joe" || key.ProviderUserID != "octo_1" {
					t.Fatalf("unexpected remove payload: %q %v", userID, key)
				}
				return nil
			},
		}
		cmd := NewRemoveConnectionCommand(svc)
		err := cmd.Execute(context.Background(), RemoveConnectionMessage{
			UserID: "joe",
			Key:    core.ConnectionKey{ProviderID: "github", ProviderUserID: "octo_1"},
		})
		if err != nil {
			t.Fatalf("execute remove connection: %v", err)
		}
		if !called {
			t.Fatalf("expected remove invocation")
		}
	})

	t.Run("remove provider connections", func(t *testing.T) {
		called := false
		svc := stubMutatingService{
			removeConnectionsFn: func(_ context.Context, userID string, providerID string) error {
				called = true
				if userID != "joe" || providerID != "github" {
					t.Fatalf("unexpected payload: %q %q", userID, providerID)
				}
				return nil
			},
		}
		cmd := NewRemoveProviderConnectionsCommand(svc)
		err := cmd.Execute(context.Background(), RemoveProviderConnectionsMessage{
			UserID:     "joe",
			ProviderID: "github",
		})
		if err != nil {
			t.Fatalf("execute remove provider connections: %v", err)
		}
		if !called {
			t.Fatalf("expected remove provider connections invocation")
		}
	})
}

func TestCommands_ServiceErrorsPropagate(t *testing.T) {
	wantErr := errors.New("backend unavailable")
	svc := stubMutatingService{
		addFn: func(_ context.Context, _ string, _ core.ConnectionData) (core.Connection, error) {
			return core.Connection{}, wantErr
		},
	}
	cmd := NewAddConnectionCommand(svc)
	err := cmd.Execute(context.Background(), AddConnectionMessage{
		UserID: "joe",
		Data:   core.ConnectionData{ProviderID: "github", ProviderUserID: "octo_1"},
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected service error propagation, got %v", err)
	}
}

func TestCommands_MissingServiceRejected(t *testing.T) {
	cmd := NewAddConnectionCommand(nil)
	err := cmd.Execute(context.Background(), AddConnectionMessage{
		UserID: "joe",
		Data:   core.ConnectionData{ProviderID: "github", ProviderUserID: "octo_1"},
	})
	if err == nil {
		t.Fatalf("expected dependency error")
	}
}

func TestCommandMessages_Validate(t *testing.T) {
	valid := AddConnectionMessage{
		UserID: "joe",
		Data:   core.ConnectionData{ProviderID: "github", ProviderUserID: "octo_1"},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := (AddConnectionMessage{Data: valid.Data}).Validate(); err == nil {
		t.Fatalf("expected missing user id to be rejected")
	}
	if err := (AddConnectionMessage{UserID: "joe"}).Validate(); err == nil {
		t.Fatalf("expected invalid connection data to be rejected")
	}
	if err := (RemoveConnectionMessage{UserID: "joe"}).Validate(); err == nil {
		t.Fatalf("expected invalid key to be rejected")
	}
	if err := (RemoveProviderConnectionsMessage{UserID: "joe"}).Validate(); err == nil {
		t.Fatalf("expected missing provider id to be rejected")
	}
}
