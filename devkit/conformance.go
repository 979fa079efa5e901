// Package devkit provides conformance checks shared by every repository
// backend. Both the in-memory and SQL stores run these in their tests.
package devkit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-connect/core"
)

// ValidateConnectionRepositoryConformance exercises the per-user repository
// contract against an empty repository scoped to providerID. It leaves the
// repository empty on success.
func ValidateConnectionRepositoryConformance(
	ctx context.Context,
	repo core.ConnectionRepository,
	providerID string,
) error {
	if repo == nil {
		return fmt.Errorf("devkit: connection repository is required")
	}
	if strings.TrimSpace(providerID) == "" {
		return fmt.Errorf("devkit: provider id is required")
	}

	first := core.Connection{
		Key:         core.ConnectionKey{ProviderID: providerID, ProviderUserID: "devkit-user-1"},
		DisplayName: "Devkit One",
		AccessToken: "devkit-token-1",
	}
	second := core.Connection{
		Key:         core.ConnectionKey{ProviderID: providerID, ProviderUserID: "devkit-user-2"},
		DisplayName: "Devkit Two",
		AccessToken: "devkit-token-2",
	}

	stored, err := repo.AddConnection(ctx, first)
	if err != nil {
		return fmt.Errorf("devkit: add first connection: %w", err)
	}
	if stored.Rank != 1 {
		return fmt.Errorf("devkit: first connection should take rank 1, got %d", stored.Rank)
	}
	if _, err := repo.AddConnection(ctx, first); !errors.Is(err, core.ErrDuplicateConnection) {
		return fmt.Errorf("devkit: duplicate add should fail with duplicate error, got %v", err)
	}
	if _, err := repo.AddConnection(ctx, second); err != nil {
		return fmt.Errorf("devkit: add second connection: %w", err)
	}

	connections, err := repo.FindConnections(ctx, providerID)
	if err != nil {
		return fmt.Errorf("devkit: find connections: %w", err)
	}
	if len(connections) != 2 {
		return fmt.Errorf("devkit: expected 2 connections, got %d", len(connections))
	}
	if connections[0].Rank >= connections[1].Rank {
		return fmt.Errorf("devkit: connections should be ordered by ascending rank")
	}

	primary, err := repo.FindPrimaryConnection(ctx, providerID)
	if err != nil {
		return fmt.Errorf("devkit: find primary connection: %w", err)
	}
	if primary.Key != connections[0].Key {
		return fmt.Errorf("devkit: primary should be the lowest ranked connection")
	}

	updated := first
	updated.DisplayName = "Devkit One Updated"
	if _, err := repo.UpdateConnection(ctx, updated); err != nil {
		return fmt.Errorf("devkit: update connection: %w", err)
	}
	loaded, err := repo.GetConnection(ctx, first.Key)
	if err != nil {
		return fmt.Errorf("devkit: get updated connection: %w", err)
	}
	if loaded.DisplayName != updated.DisplayName {
		return fmt.Errorf("devkit: update should replace display name, got %q", loaded.DisplayName)
	}
	if loaded.Rank != connections[0].Rank {
		return fmt.Errorf("devkit: update should preserve rank")
	}

	missing := core.ConnectionKey{ProviderID: providerID, ProviderUserID: "devkit-missing"}
	if _, err := repo.GetConnection(ctx, missing); !errors.Is(err, core.ErrNoSuchConnection) {
		return fmt.Errorf("devkit: missing lookup should fail with not-found error, got %v", err)
	}

	if err := repo.RemoveConnection(ctx, first.Key); err != nil {
		return fmt.Errorf("devkit: remove first connection: %w", err)
	}
	if err := repo.RemoveConnection(ctx, first.Key); err != nil {
		return fmt.Errorf("devkit: repeated remove should be idempotent, got %v", err)
	}

	primary, err = repo.FindPrimaryConnection(ctx, providerID)
	if err != nil {
		return fmt.Errorf("devkit: find primary after remove: %w", err)
	}
	if primary.Key != second.Key {
		return fmt.Errorf("devkit: surviving connection should become primary")
	}

	if err := repo.RemoveConnections(ctx, providerID); err != nil {
		return fmt.Errorf("devkit: remove provider connections: %w", err)
	}
	connections, err = repo.FindConnections(ctx, providerID)
	if err != nil {
		return fmt.Errorf("devkit: find connections after removal: %w", err)
	}
	if len(connections) != 0 {
		return fmt.Errorf("devkit: expected empty repository, got %d connections", len(connections))
	}
	return nil
}

// ValidateUsersRepositoryConformance exercises cross-user lookups and the
// per-user repository lifecycle. The users repository must hold no
// connections for the provided user ids and no sign-up callback.
func ValidateUsersRepositoryConformance(
	ctx context.Context,
	users core.UsersConnectionRepository,
	providerID string,
	firstUserID string,
	secondUserID string,
) error {
	if users == nil {
		return fmt.Errorf("devkit: users repository is required")
	}
	if strings.TrimSpace(providerID) == "" {
		return fmt.Errorf("devkit: provider id is required")
	}
	if strings.TrimSpace(firstUserID) == "" || strings.TrimSpace(secondUserID) == "" || firstUserID == secondUserID {
		return fmt.Errorf("devkit: two distinct user ids are required")
	}

	if _, err := users.CreateConnectionRepository(ctx, ""); err == nil {
		return fmt.Errorf("devkit: blank user id should be rejected")
	}

	firstRepo, err := users.CreateConnectionRepository(ctx, firstUserID)
	if err != nil {
		return fmt.Errorf("devkit: create first repository: %w", err)
	}
	again, err := users.CreateConnectionRepository(ctx, firstUserID)
	if err != nil {
		return fmt.Errorf("devkit: repeated create should be idempotent, got %v", err)
	}
	if again == nil {
		return fmt.Errorf("devkit: repeated create returned nil repository")
	}
	secondRepo, err := users.CreateConnectionRepository(ctx, secondUserID)
	if err != nil {
		return fmt.Errorf("devkit: create second repository: %w", err)
	}

	shared := core.Connection{
		Key:         core.ConnectionKey{ProviderID: providerID, ProviderUserID: "devkit-shared"},
		AccessToken: "devkit-token",
	}
	if _, err := firstRepo.AddConnection(ctx, shared); err != nil {
		return fmt.Errorf("devkit: add shared connection for first user: %w", err)
	}
	if _, err := secondRepo.AddConnection(ctx, shared); err != nil {
		return fmt.Errorf("devkit: add shared connection for second user: %w", err)
	}

	userIDs, err := users.FindUserIDsWithConnection(ctx, shared)
	if err != nil {
		return fmt.Errorf("devkit: find users with connection: %w", err)
	}
	if len(userIDs) != 2 {
		return fmt.Errorf("devkit: expected both users, got %v", userIDs)
	}

	connected, err := users.FindUserIDsConnectedTo(ctx, providerID, []string{shared.Key.ProviderUserID, "devkit-unknown"})
	if err != nil {
		return fmt.Errorf("devkit: find users connected to: %w", err)
	}
	if len(connected) != 2 {
		return fmt.Errorf("devkit: expected both users connected, got %v", connected)
	}

	if err := firstRepo.RemoveConnections(ctx, providerID); err != nil {
		return fmt.Errorf("devkit: cleanup first user: %w", err)
	}
	if err := secondRepo.RemoveConnections(ctx, providerID); err != nil {
		return fmt.Errorf("devkit: cleanup second user: %w", err)
	}
	return nil
}
