package query

import (
	gocmd "github.com/goliatone/go-command"

	"github.com/goliatone/go-connect/core"
)

var (
	_ gocmd.Querier[GetConnectionMessage, core.Connection]         = (*GetConnectionQuery)(nil)
	_ gocmd.Querier[FindConnectionsMessage, []core.Connection]     = (*FindConnectionsQuery)(nil)
	_ gocmd.Querier[FindPrimaryConnectionMessage, core.Connection] = (*FindPrimaryConnectionQuery)(nil)
	_ gocmd.Querier[FindUserIDsConnectedToMessage, []string]       = (*FindUserIDsConnectedToQuery)(nil)
)
