package query

import (
	"context"

	"github.com/goliatone/go-connect/core"
)

// ConnectionReader is the read-only slice of core.Service the queries need.
type ConnectionReader interface {
	GetConnection(ctx context.Context, userID string, key core.ConnectionKey) (core.Connection, error)
	FindConnections(ctx context.Context, userID string, providerID string) ([]core.Connection, error)
	FindPrimaryConnection(ctx context.Context, userID string, providerID string) (core.Connection, error)
}

type UsersReader interface {
	FindUserIDsConnectedTo(ctx context.Context, providerID string, providerUserIDs []string) ([]string, error)
}

type GetConnectionQuery struct {
	reader ConnectionReader
}

func NewGetConnectionQuery(reader ConnectionReader) *GetConnectionQuery {
	return &GetConnectionQuery{reader: reader}
}

func (q *GetConnectionQuery) Query(ctx context.Context, msg GetConnectionMessage) (core.Connection, error) {
	if q == nil || q.reader == nil {
		return core.Connection{}, queryDependencyError("query: connection reader is required")
	}
	return q.reader.GetConnection(ctx, msg.UserID, msg.Key)
}

type FindConnectionsQuery struct {
	reader ConnectionReader
}

func NewFindConnectionsQuery(reader ConnectionReader) *FindConnectionsQuery {
	return &FindConnectionsQuery{reader: reader}
}

func (q *FindConnectionsQuery) Query(ctx context.Context, msg FindConnectionsMessage) ([]core.Connection, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: connection reader is required")
	}
	return q.reader.FindConnections(ctx, msg.UserID, msg.ProviderID)
}

type FindPrimaryConnectionQuery struct {
	reader ConnectionReader
}

func NewFindPrimaryConnectionQuery(reader ConnectionReader) *FindPrimaryConnectionQuery {
	return &FindPrimaryConnectionQuery{reader: reader}
}

func (q *FindPrimaryConnectionQuery) Query(ctx context.Context, msg FindPrimaryConnectionMessage) (core.Connection, error) {
	if q == nil || q.reader == nil {
		return core.Connection{}, queryDependencyError("query: connection reader is required")
	}
	return q.reader.FindPrimaryConnection(ctx, msg.UserID, msg.ProviderID)
}

type FindUserIDsConnectedToQuery struct {
	reader UsersReader
}

func NewFindUserIDsConnectedToQuery(reader UsersReader) *FindUserIDsConnectedToQuery {
	return &FindUserIDsConnectedToQuery{reader: reader}
}

func (q *FindUserIDsConnectedToQuery) Query(ctx context.Context, msg FindUserIDsConnectedToMessage) ([]string, error) {
	if q == nil || q.reader == nil {
		return nil, queryDependencyError("query: users reader is required")
	}
	return q.reader.FindUserIDsConnectedTo(ctx, msg.ProviderID, msg.ProviderUserIDs)
}
