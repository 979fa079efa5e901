package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-connect/core"
)

// MutatingService is the slice of core.Service the commands need.
type MutatingService interface {
	AddConnection(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error)
	UpdateConnection(ctx context.Context, userID string, data core.ConnectionData) (core.Connection, error)
	RemoveConnection(ctx context.Context, userID string, key core.ConnectionKey) error
	RemoveConnections(ctx context.Context, userID string, providerID string) error
}

type AddConnectionCommand struct {
	service MutatingService
}

func NewAddConnectionCommand(service MutatingService) *AddConnectionCommand {
	return &AddConnectionCommand{service: service}
}

func (c *AddConnectionCommand) Execute(ctx context.Context, msg AddConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: add connection service is required")
	}
	out, err := c.service.AddConnection(ctx, msg.UserID, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type UpdateConnectionCommand struct {
	service MutatingService
}

func NewUpdateConnectionCommand(service MutatingService) *UpdateConnectionCommand {
	return &UpdateConnectionCommand{service: service}
}

func (c *UpdateConnectionCommand) Execute(ctx context.Context, msg UpdateConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: update connection service is required")
	}
	out, err := c.service.UpdateConnection(ctx, msg.UserID, msg.Data)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RemoveConnectionCommand struct {
	service MutatingService
}

func NewRemoveConnectionCommand(service MutatingService) *RemoveConnectionCommand {
	return &RemoveConnectionCommand{service: service}
}

func (c *RemoveConnectionCommand) Execute(ctx context.Context, msg RemoveConnectionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remove connection service is required")
	}
	return c.service.RemoveConnection(ctx, msg.UserID, msg.Key)
}

type RemoveProviderConnectionsCommand struct {
	service MutatingService
}

func NewRemoveProviderConnectionsCommand(service MutatingService) *RemoveProviderConnectionsCommand {
	return &RemoveProviderConnectionsCommand{service: service}
}

func (c *RemoveProviderConnectionsCommand) Execute(ctx context.Context, msg RemoveProviderConnectionsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: remove provider connections service is required")
	}
	return c.service.RemoveConnections(ctx, msg.UserID, msg.ProviderID)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
