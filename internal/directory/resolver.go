// Package directory resolves agents to their telephony extension and DID.
package directory

import (
	"context"
	"fmt"

	"github.com/dialtrack/backend/internal/storage"
	"github.com/dialtrack/backend/internal/types"
	"github.com/rs/zerolog"
)

// Resolver answers extension/DID lookups from the agent extension table
type Resolver struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewResolver creates a store-backed resolver
func NewResolver(store storage.Store, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// Resolve returns the agent's extension and DID. Both come back empty
// when the agent has no assigned extension.
func (r *Resolver) Resolve(ctx context.Context, userID string) (string, string, error) {
	ext, err := r.store.FindAgentExtension(ctx, userID)
	if err != nil {
		return "", "", fmt.Errorf("find agent extension: %w", err)
	}
	if ext == nil {
		return "", "", nil
	}
	return ext.Extension, ext.DID, nil
}

// Assign upserts an agent's extension mapping
func (r *Resolver) Assign(ctx context.Context, ext *types.AgentExtension) error {
	if err := r.store.PutAgentExtension(ctx, ext); err != nil {
		return fmt.Errorf("put agent extension: %w", err)
	}
	r.logger.Info().
		Str("user_id", ext.UserID).
		Str("extension", ext.Extension).
		Msg("extension assigned")
	return nil
}
