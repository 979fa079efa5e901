package sqlstore

import "github.com/goliatone/go-connect/core"

var (
	_ core.ConnectionRepository      = (*ConnectionRepository)(nil)
	_ core.UsersConnectionRepository = (*UsersStore)(nil)
	_ core.UsersConnectionRepository = (*CachedUsersStore)(nil)
	_ core.EventSink                 = (*EventStore)(nil)
	_ core.RepositoryStoreFactory    = (*RepositoryFactory)(nil)
)
