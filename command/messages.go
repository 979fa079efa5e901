package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-connect/core"
)

const (
	TypeAddConnection             = "connect.command.connection.add"
	TypeUpdateConnection          = "connect.command.connection.update"
	TypeRemoveConnection          = "connect.command.connection.remove"
	TypeRemoveProviderConnections = "connect.command.connection.remove_provider"
)

type AddConnectionMessage struct {
	UserID string
	Data   core.ConnectionData
}

func (AddConnectionMessage) Type() string { return TypeAddConnection }

func (m AddConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return m.Data.Validate()
}

type UpdateConnectionMessage struct {
	UserID string
	Data   core.ConnectionData
}

func (UpdateConnectionMessage) Type() string { return TypeUpdateConnection }

func (m UpdateConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return m.Data.Validate()
}

type RemoveConnectionMessage struct {
	UserID string
	Key    core.ConnectionKey
}

func (RemoveConnectionMessage) Type() string { return TypeRemoveConnection }

func (m RemoveConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	return m.Key.Validate()
}

type RemoveProviderConnectionsMessage struct {
	UserID     string
	ProviderID string
}

func (RemoveProviderConnectionsMessage) Type() string { return TypeRemoveProviderConnections }

func (m RemoveProviderConnectionsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("command: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("command: provider id is required")
	}
	return nil
}
