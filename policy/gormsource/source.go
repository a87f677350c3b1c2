// Package gormsource loads policy snapshots from a relational store.
// It is the persistence adapter behind policy.Source; the evaluator
// only ever sees the immutable snapshots built here.
package gormsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"authcore/policy"
)

// Source loads policy snapshots from a gorm-managed database.
type Source struct {
	db *gorm.DB
}

// Open connects to postgres and returns a Source.
func Open(dsn string) (*Source, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	return &Source{db: db}, nil
}

// New wraps an existing gorm handle.
func New(db *gorm.DB) *Source {
	return &Source{db: db}
}

// Migrate creates or updates the policy tables.
func (s *Source) Migrate() error {
	return s.db.AutoMigrate(&RoleGrant{}, &PolicyVersion{})
}

// Load implements policy.Source: it reads all role grants and the
// current version marker and builds an immutable snapshot.
func (s *Source) Load(ctx context.Context) (*policy.Snapshot, error) {
	var rows []RoleGrant
	if err := s.db.WithContext(ctx).Order("role, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("loading role grants: %w", err)
	}

	version, err := s.currentVersion(ctx, len(rows))
	if err != nil {
		return nil, err
	}

	return BuildSnapshot(version, rows)
}

// currentVersion reads the newest version marker, falling back to a
// synthetic version when none has been recorded.
func (s *Source) currentVersion(ctx context.Context, grantCount int) (string, error) {
	var pv PolicyVersion
	err := s.db.WithContext(ctx).Order("id desc").First(&pv).Error
	switch {
	case err == nil:
		return pv.Version, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Sprintf("unversioned-%d", grantCount), nil
	default:
		return "", fmt.Errorf("loading policy version: %w", err)
	}
}

// BuildSnapshot converts role grant rows into a policy snapshot.
func BuildSnapshot(version string, rows []RoleGrant) (*policy.Snapshot, error) {
	policies := make(map[string][]policy.Grant)
	for _, row := range rows {
		grant, err := toGrant(row)
		if err != nil {
			return nil, fmt.Errorf("grant %d (%s): %w", row.ID, row.Role, err)
		}
		policies[row.Role] = append(policies[row.Role], grant)
	}
	return policy.NewSnapshot(version, policies), nil
}

// toGrant converts one row, parsing its attribute conditions.
func toGrant(row RoleGrant) (policy.Grant, error) {
	grant := policy.Grant{
		Resource:     row.Resource,
		Action:       row.Action,
		TenantGlobal: row.TenantGlobal,
	}
	if row.Resource == "" || row.Action == "" {
		return policy.Grant{}, fmt.Errorf("missing resource or action")
	}
	if row.Attributes != "" {
		if err := json.Unmarshal([]byte(row.Attributes), &grant.When); err != nil {
			return policy.Grant{}, fmt.Errorf("parsing attribute conditions: %w", err)
		}
	}
	return grant, nil
}
