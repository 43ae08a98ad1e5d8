package roster

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/dencamenew/vsuet-attendance/internal/models"
)

// ErrIdentityNotFound signals that the caller identity has no roster entry.
var ErrIdentityNotFound = errors.New("roster: identity not found")

// Resolver maps a verified caller identity to the roster identifier recorded
// in attendance rosters. Owned by the external CRUD subsystem; this service
// only reads.
type Resolver interface {
	ResolveIdentity(ctx context.Context, callerID string) (string, error)
}

// DBResolver resolves identities against the shared students table.
type DBResolver struct {
	db *gorm.DB
}

// NewDBResolver constructs a resolver once a database handle is supplied.
func NewDBResolver(db *gorm.DB) (*DBResolver, error) {
	if db == nil {
		return nil, errors.New("roster: db is required")
	}
	return &DBResolver{db: db}, nil
}

// ResolveIdentity returns the record-book number for the student whose max_id
// matches the caller identity.
func (r *DBResolver) ResolveIdentity(ctx context.Context, callerID string) (string, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return "", ErrIdentityNotFound
	}

	var student models.Student
	err := r.db.WithContext(ctx).
		Select("zach_number").
		Where("max_id = ?", callerID).
		First(&student).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrIdentityNotFound
	}
	if err != nil {
		return "", err
	}

	if student.ZachNumber == "" {
		return "", ErrIdentityNotFound
	}
	return student.ZachNumber, nil
}
