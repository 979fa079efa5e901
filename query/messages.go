package query

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-connect/core"
)

const (
	TypeGetConnection          = "connect.query.connection.get"
	TypeFindConnections        = "connect.query.connection.find"
	TypeFindPrimaryConnection  = "connect.query.connection.primary"
	TypeFindUserIDsConnectedTo = "connect.query.users.connected_to"
)

type GetConnectionMessage struct {
	UserID string
	Key    core.ConnectionKey
}

func (GetConnectionMessage) Type() string { return TypeGetConnection }

func (m GetConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	return m.Key.Validate()
}

type FindConnectionsMessage struct {
	UserID     string
	ProviderID string
}

func (FindConnectionsMessage) Type() string { return TypeFindConnections }

func (m FindConnectionsMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("query: provider id is required")
	}
	return nil
}

type FindPrimaryConnectionMessage struct {
	UserID     string
	ProviderID string
}

func (FindPrimaryConnectionMessage) Type() string { return TypeFindPrimaryConnection }

func (m FindPrimaryConnectionMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("query: user id is required")
	}
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("query: provider id is required")
	}
	return nil
}

type FindUserIDsConnectedToMessage struct {
	ProviderID      string
	ProviderUserIDs []string
}

func (FindUserIDsConnectedToMessage) Type() string { return TypeFindUserIDsConnectedTo }

func (m FindUserIDsConnectedToMessage) Validate() error {
	if strings.TrimSpace(m.ProviderID) == "" {
		return fmt.Errorf("query: provider id is required")
	}
	if len(m.ProviderUserIDs) == 0 {
		return fmt.Errorf("query: provider user ids are required")
	}
	return nil
}
