// Package entitlement answers the single question the pipeline asks
// about a user: is their subscription tier exempt from archival.
package entitlement

import (
	"context"

	"github.com/seqworks/annotation-pipeline/internal/store"
	"github.com/seqworks/annotation-pipeline/internal/store/model"
)

type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// ArchiveExempt reports whether results belonging to this tier stay in
// hot storage indefinitely.
func (t Tier) ArchiveExempt() bool {
	return t == TierPremium
}

// Service looks a user's tier up by id.
type Service interface {
	Lookup(ctx context.Context, userID string) (Tier, error)
}

// StoreService resolves tiers from the accounts table.
type StoreService struct {
	users store.User
}

var _ Service = (*StoreService)(nil)

func NewStoreService(users store.User) *StoreService {
	return &StoreService{users: users}
}

func (s *StoreService) Lookup(ctx context.Context, userID string) (Tier, error) {
	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Role == model.RolePremiumUser {
		return TierPremium, nil
	}
	return TierFree, nil
}

// StaticService maps user ids to tiers from a fixed table, defaulting
// to free. Used by tests and local runs.
type StaticService struct {
	Tiers map[string]Tier
}

var _ Service = (*StaticService)(nil)

func (s *StaticService) Lookup(_ context.Context, userID string) (Tier, error) {
	if tier, ok := s.Tiers[userID]; ok {
		return tier, nil
	}
	return TierFree, nil
}
