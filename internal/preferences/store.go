package preferences

import (
	"context"
	"fmt"
	"strings"
	"time"

	"videokit/internal/domain"
	"videokit/internal/infra"
	"videokit/internal/sqlinline"
)

const (
	KeyKieAPIKey   = "kie_api_key"
	KeyOrientation = "default_orientation"
)

// Store keeps small local settings: the stored provider API key and the default orientation.
type Store struct {
	sql infra.SQLExecutor
	now func() time.Time
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql, now: time.Now}
}

// APIKey returns the stored provider key, or "" when none is set.
func (s *Store) APIKey(ctx context.Context) (string, error) {
	return s.value(ctx, KeyKieAPIKey)
}

func (s *Store) SetAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: api key is required", domain.ErrValidation)
	}
	return s.upsert(ctx, KeyKieAPIKey, key)
}

func (s *Store) ClearAPIKey(ctx context.Context) error {
	if _, err := s.sql.Exec(ctx, sqlinline.QDeletePreference, KeyKieAPIKey); err != nil {
		return fmt.Errorf("clear api key: %w: %w", domain.ErrStoreUnavailable, err)
	}
	return nil
}

// MaskedAPIKey reports whether a key is stored and a display form that hides all but its tail.
func (s *Store) MaskedAPIKey(ctx context.Context) (bool, string, error) {
	key, err := s.APIKey(ctx)
	if err != nil || key == "" {
		return false, "", err
	}
	return true, Mask(key), nil
}

// Orientation returns the stored default orientation, portrait when unset.
func (s *Store) Orientation(ctx context.Context) (domain.Orientation, error) {
	v, err := s.value(ctx, KeyOrientation)
	if err != nil {
		return domain.OrientationPortrait, err
	}
	if o := domain.Orientation(v); o.Valid() {
		return o, nil
	}
	return domain.OrientationPortrait, nil
}

func (s *Store) SetOrientation(ctx context.Context, o domain.Orientation) error {
	if !o.Valid() {
		return fmt.Errorf("%w: unknown orientation %q", domain.ErrValidation, o)
	}
	return s.upsert(ctx, KeyOrientation, string(o))
}

// Mask keeps the last four characters of key.
func Mask(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func (s *Store) value(ctx context.Context, key string) (string, error) {
	row := s.sql.QueryRow(ctx, sqlinline.QSelectPreference, key)
	var value string
	if err := row.Scan(&value); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return strings.TrimSpace(value), nil
}

func (s *Store) upsert(ctx context.Context, key, value string) error {
	updated := s.now().UTC().Format(time.RFC3339Nano)
	if _, err := s.sql.Exec(ctx, sqlinline.QUpsertPreference, key, value, updated); err != nil {
		return fmt.Errorf("write %s: %w: %w", key, domain.ErrStoreUnavailable, err)
	}
	return nil
}
