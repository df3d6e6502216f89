package database

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/promptbattle/internal/models"
)

const profileColumns = `id, username, wins, losses, created_at`

func scanProfile(row pgx.Row) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Username, &p.Wins, &p.Losses, &p.CreatedAt); err != nil {
		if noRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// CreateProfile inserts a new profile. An empty ID is filled with a random UUID.
func (s *Store) CreateProfile(ctx context.Context, p *models.Profile) error {
	if p.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return fmt.Errorf("failed to generate profile id: %w", err)
		}
		p.ID = id.String()
	}

	q := `INSERT INTO profiles (id, username)
	      VALUES ($1, $2)
	      RETURNING ` + profileColumns

	created, err := scanProfile(s.pool.QueryRow(ctx, q, p.ID, p.Username))
	if err != nil {
		if _, ok := uniqueConstraint(err); ok {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	*p = *created
	return nil
}

// EnsureProfile returns the profile with id, creating it with username if it does not exist yet.
func (s *Store) EnsureProfile(ctx context.Context, id, username string) (*models.Profile, error) {
	q := `
		INSERT INTO profiles (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := s.pool.Exec(ctx, q, id, username); err != nil {
		return nil, fmt.Errorf("failed to ensure profile: %w", err)
	}
	return s.GetProfile(ctx, id)
}

// GetProfile fetches a profile by id.
func (s *Store) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	q := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanProfile(s.pool.QueryRow(ctx, q, id))
}

// TopProfiles returns the profiles with the most wins.
func (s *Store) TopProfiles(ctx context.Context, limit int) ([]models.Profile, error) {
	q := `
		SELECT ` + profileColumns + `
		FROM profiles
		ORDER BY wins DESC, losses ASC, created_at ASC
		LIMIT $1
	`
	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
