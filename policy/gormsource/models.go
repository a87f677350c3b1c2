package gormsource

import "time"

// RoleGrant is one row of the role_grants table: a role's permission
// to perform an action on resources matching a pattern.
type RoleGrant struct {
	ID           uint   `gorm:"primaryKey"`
	Role         string `gorm:"index;not null"`
	Resource     string `gorm:"not null"`
	Action       string `gorm:"not null"`
	TenantGlobal bool   `gorm:"not null;default:false"`

	// Attributes holds the grant's attribute conditions as a JSON
	// object of required key/value pairs. Empty means unconditional.
	Attributes string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName implements gorm's table naming.
func (RoleGrant) TableName() string { return "role_grants" }

// PolicyVersion tracks published policy revisions. The newest row
// names the version of the current rule set.
type PolicyVersion struct {
	ID        uint   `gorm:"primaryKey"`
	Version   string `gorm:"not null;uniqueIndex"`
	CreatedAt time.Time
}

// TableName implements gorm's table naming.
func (PolicyVersion) TableName() string { return "policy_versions" }
