package repository

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/businesshub/internal/domain"
)

func TestApprovedByUserFilter(t *testing.T) {
	userID := primitive.NewObjectID()
	filter := approvedByUserFilter(userID)

	if got := filter["user_id"]; got != userID {
		t.Fatalf("expected user_id %v, got %v", userID, got)
	}

	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected two-clause $or, got %v", filter["$or"])
	}

	roleClause, ok := or[0].(bson.M)
	if !ok || roleClause["role"] != domain.RoleCreator {
		t.Fatalf("expected creator role clause, got %v", or[0])
	}
}

func TestPendingByBusinessFilter(t *testing.T) {
	businessID := primitive.NewObjectID()
	filter := pendingByBusinessFilter(businessID)

	if got := filter["business_id"]; got != businessID {
		t.Fatalf("expected business_id %v, got %v", businessID, got)
	}

	roleClause, ok := filter["role"].(bson.M)
	if !ok {
		t.Fatalf("expected role exclusion clause, got %v", filter["role"])
	}
	if roleClause["$ne"] != domain.RoleCreator {
		t.Fatalf("pending filter must exclude creators, got %v", roleClause)
	}

	or, ok := filter["$or"].(bson.A)
	if !ok || len(or) != 2 {
		t.Fatalf("expected absent-or-nil approver clause, got %v", filter["$or"])
	}
}
