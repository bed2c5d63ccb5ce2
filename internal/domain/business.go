package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role is one of the fixed membership roles. There is no hierarchy beyond
// the approval rules: creators are implicitly approved, admins administrate
// once approved, users may only read once approved.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
)

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleCreator, RoleAdmin, RoleUser:
		return true
	}
	return false
}

// Business represents an organization that users join.
// Businesses are created once and never updated or deleted.
type Business struct {
	ID   primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name string             `bson:"name" json:"name"`
}

// User represents a registered account. The membership core only reads
// users; mutation happens through the auth collaborator.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// Identity is a resolved caller identity supplied by the auth boundary.
// The membership core trusts it completely and never re-validates credentials.
type Identity struct {
	ID    primitive.ObjectID
	Email string
}

// Membership binds a user to a business with a role and approval state.
// At most one membership exists per (business_id, user_id); the store
// enforces this with a unique index, not application logic.
//
// A membership is approved when the role is creator or ApprovedBy is set.
// Pending means role != creator and ApprovedBy is absent.
type Membership struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	BusinessID primitive.ObjectID  `bson:"business_id" json:"business_id"`
	UserID     primitive.ObjectID  `bson:"user_id" json:"user_id"`
	Role       Role                `bson:"role" json:"role"`
	JoinedAt   time.Time           `bson:"joined_at" json:"joined_at"`
	ApprovedBy *primitive.ObjectID `bson:"approved_by,omitempty" json:"approved_by,omitempty"`
}

// BusinessRepository defines data access for businesses
type BusinessRepository interface {
	Insert(ctx context.Context, business *Business) error
	// GetByID returns ErrNotFound when no business has the given id.
	GetByID(ctx context.Context, id primitive.ObjectID) (*Business, error)
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*Business, error)
	// SearchByName matches the query as a case-insensitive substring.
	SearchByName(ctx context.Context, query string) ([]*Business, error)
}

// MembershipRepository defines data access for memberships
type MembershipRepository interface {
	// Insert returns ErrConflict when a membership already exists for the
	// (business_id, user_id) pair, regardless of its approval state.
	Insert(ctx context.Context, m *Membership) error
	// Get returns the membership for (businessID, userID), or nil (with a
	// nil error) when none exists.
	Get(ctx context.Context, businessID, userID primitive.ObjectID) (*Membership, error)
	// ListApprovedByUser returns memberships where the user is the creator
	// or has been approved.
	ListApprovedByUser(ctx context.Context, userID primitive.ObjectID) ([]*Membership, error)
	// ListPendingByBusiness returns non-creator memberships with no approver.
	ListPendingByBusiness(ctx context.Context, businessID primitive.ObjectID) ([]*Membership, error)
	// SetApprovedBy stamps the approver on the (businessID, userID)
	// membership and reports how many documents matched. Re-approval
	// re-applies the same value; zero matches is not an error here.
	SetApprovedBy(ctx context.Context, businessID, userID, approverID primitive.ObjectID) (int64, error)
	// CountPendingByBusiness returns pending membership counts keyed by
	// business id across the whole collection.
	CountPendingByBusiness(ctx context.Context) (map[primitive.ObjectID]int64, error)
}

// UserRepository defines data access for users
type UserRepository interface {
	// Insert returns ErrConflict when the email is already registered.
	Insert(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// UpdatePassword replaces the stored hash; ErrNotFound when no such user.
	UpdatePassword(ctx context.Context, id primitive.ObjectID, passwordHash string) error
}
