package connect

import (
	"fmt"

	connectcommand "github.com/goliatone/go-connect/command"
	connectquery "github.com/goliatone/go-connect/query"
)

// CommandQueryService is the service surface the facade dispatches against.
// *core.Service satisfies it.
type CommandQueryService interface {
	connectcommand.MutatingService
	connectquery.ConnectionReader
	connectquery.UsersReader
}

type Commands struct {
	AddConnection             *connectcommand.AddConnectionCommand
	UpdateConnection          *connectcommand.UpdateConnectionCommand
	RemoveConnection          *connectcommand.RemoveConnectionCommand
	RemoveProviderConnections *connectcommand.RemoveProviderConnectionsCommand
}

type Queries struct {
	GetConnection          *connectquery.GetConnectionQuery
	FindConnections        *connectquery.FindConnectionsQuery
	FindPrimaryConnection  *connectquery.FindPrimaryConnectionQuery
	FindUserIDsConnectedTo *connectquery.FindUserIDsConnectedToQuery
}

// Facade bundles the command and query handlers over one service instance so
// callers can register them with a dispatcher in one pass.
type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

func NewFacade(service CommandQueryService) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("connect: command/query service is required")
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		AddConnection:             connectcommand.NewAddConnectionCommand(service),
		UpdateConnection:          connectcommand.NewUpdateConnectionCommand(service),
		RemoveConnection:          connectcommand.NewRemoveConnectionCommand(service),
		RemoveProviderConnections: connectcommand.NewRemoveProviderConnectionsCommand(service),
	}
	facade.queries = Queries{
		GetConnection:          connectquery.NewGetConnectionQuery(service),
		FindConnections:        connectquery.NewFindConnectionsQuery(service),
		FindPrimaryConnection:  connectquery.NewFindPrimaryConnectionQuery(service),
		FindUserIDsConnectedTo: connectquery.NewFindUserIDsConnectedToQuery(service),
	}

	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}
