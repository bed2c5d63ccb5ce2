package repository

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/businesshub/internal/domain"
)

// The approval predicate appears on every read path that gates access, so it
// lives here as a named filter instead of being rebuilt ad hoc per query.

// approvedClause matches memberships that grant access: the creator role, or
// an approver stamped on the document.
func approvedClause() bson.M {
	return bson.M{"$or": bson.A{
		bson.M{"role": domain.RoleCreator},
		bson.M{"approved_by": bson.M{"$exists": true, "$ne": nil}},
	}}
}

// approvedByUserFilter selects all approved memberships for one user.
func approvedByUserFilter(userID primitive.ObjectID) bson.M {
	filter := approvedClause()
	filter["user_id"] = userID
	return filter
}

// pendingByBusinessFilter selects the open join requests of one business:
// non-creator memberships with no approver.
func pendingByBusinessFilter(businessID primitive.ObjectID) bson.M {
	return bson.M{
		"business_id": businessID,
		"role":        bson.M{"$ne": domain.RoleCreator},
		"$or": bson.A{
			bson.M{"approved_by": bson.M{"$exists": false}},
			bson.M{"approved_by": nil},
		},
	}
}
