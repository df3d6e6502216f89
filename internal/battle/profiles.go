package battle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jason-s-yu/promptbattle/internal/database"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

const (
	maxUsernameLength  = 32
	defaultUsername    = "Player"
	defaultLeaderboard = 10
	maxLeaderboard     = 100
)

// Identity is the authenticated caller.
type Identity struct {
	UserID   string
	Username string
}

func (id Identity) displayName() string {
	if name := strings.TrimSpace(id.Username); name != "" {
		return name
	}
	return defaultUsername
}

// CreateGuest registers a new profile with a generated id.
func (s *Service) CreateGuest(ctx context.Context, username string) (*models.Profile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		username = defaultUsername
	}
	if len(username) > maxUsernameLength {
		return nil, fmt.Errorf("%w: username longer than %d characters", ErrValidation, maxUsernameLength)
	}
	p := &models.Profile{Username: username}
	if err := s.store.CreateProfile(ctx, p); err != nil {
		return nil, internalErr("create profile", err)
	}
	return p, nil
}

// Profile returns the profile of userID.
func (s *Service) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	p, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%w: profile %s", ErrNotFound, userID)
	}
	if err != nil {
		return nil, internalErr("get profile", err)
	}
	return p, nil
}

// Leaderboard returns the top profiles by wins, served from cache when possible.
func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.Profile, error) {
	if limit <= 0 {
		limit = defaultLeaderboard
	}
	if limit > maxLeaderboard {
		limit = maxLeaderboard
	}

	if s.leaderboard != nil {
		cached, ok, err := s.leaderboard.Get(ctx, limit)
		if err != nil {
			s.logger.WithError(err).Warn("leaderboard cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	profiles, err := s.store.TopProfiles(ctx, limit)
	if err != nil {
		return nil, internalErr("list top profiles", err)
	}
	if profiles == nil {
		profiles = []models.Profile{}
	}
	if s.leaderboard != nil {
		if err := s.leaderboard.Set(ctx, limit, profiles); err != nil {
			s.logger.WithError(err).Warn("leaderboard cache write failed")
		}
	}
	return profiles, nil
}

func (s *Service) ensureProfile(ctx context.Context, id Identity) error {
	if id.UserID == "" {
		return ErrUnauthorized
	}
	if _, err := s.store.EnsureProfile(ctx, id.UserID, id.displayName()); err != nil {
		return internalErr("ensure profile", err)
	}
	return nil
}
