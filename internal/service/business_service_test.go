package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/events"
)

type memBusinessRepo struct {
	mu         sync.Mutex
	businesses map[primitive.ObjectID]*domain.Business
}

func newMemBusinessRepo() *memBusinessRepo {
	return &memBusinessRepo{businesses: map[primitive.ObjectID]*domain.Business{}}
}

func (r *memBusinessRepo) Insert(ctx context.Context, business *domain.Business) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	business.ID = primitive.NewObjectID()
	copied := *business
	r.businesses[business.ID] = &copied
	return nil
}

func (r *memBusinessRepo) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.businesses[id]
	if !ok {
		return nil, fmt.Errorf("business %s: %w", id.Hex(), domain.ErrNotFound)
	}
	copied := *b
	return &copied, nil
}

func (r *memBusinessRepo) GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]*domain.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Business{}
	for _, id := range ids {
		if b, ok := r.businesses[id]; ok {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memBusinessRepo) SearchByName(ctx context.Context, query string) ([]*domain.Business, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Business{}
	for _, b := range r.businesses {
		if strings.Contains(strings.ToLower(b.Name), strings.ToLower(query)) {
			copied := *b
			out = append(out, &copied)
		}
	}
	return out, nil
}

// memMembershipRepo mimics the store's unique (business_id, user_id) index.
type memMembershipRepo struct {
	mu          sync.Mutex
	memberships map[string]*domain.Membership
	insertErr   error
}

func newMemMembershipRepo() *memMembershipRepo {
	return &memMembershipRepo{memberships: map[string]*domain.Membership{}}
}

func membershipKey(businessID, userID primitive.ObjectID) string {
	return businessID.Hex() + "/" + userID.Hex()
}

func (r *memMembershipRepo) Insert(ctx context.Context, m *domain.Membership) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.insertErr != nil {
		return r.insertErr
	}
	key := membershipKey(m.BusinessID, m.UserID)
	if _, exists := r.memberships[key]; exists {
		return fmt.Errorf("membership for %s: %w", key, domain.ErrConflict)
	}
	m.ID = primitive.NewObjectID()
	copied := *m
	r.memberships[key] = &copied
	return nil
}

func (r *memMembershipRepo) Get(ctx context.Context, businessID, userID primitive.ObjectID) (*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipKey(businessID, userID)]
	if !ok {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (r *memMembershipRepo) ListApprovedByUser(ctx context.Context, userID primitive.ObjectID) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Membership{}
	for _, m := range r.memberships {
		if m.UserID != userID {
			continue
		}
		if m.Role == domain.RoleCreator || m.ApprovedBy != nil {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) ListPendingByBusiness(ctx context.Context, businessID primitive.ObjectID) ([]*domain.Membership, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Membership{}
	for _, m := range r.memberships {
		if m.BusinessID != businessID {
			continue
		}
		if m.Role != domain.RoleCreator && m.ApprovedBy == nil {
			copied := *m
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *memMembershipRepo) SetApprovedBy(ctx context.Context, businessID, userID, approverID primitive.ObjectID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.memberships[membershipKey(businessID, userID)]
	if !ok {
		return 0, nil
	}
	approver := approverID
	m.ApprovedBy = &approver
	return 1, nil
}

func (r *memMembershipRepo) CountPendingByBusiness(ctx context.Context) (map[primitive.ObjectID]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[primitive.ObjectID]int64{}
	for _, m := range r.memberships {
		if m.Role != domain.RoleCreator && m.ApprovedBy == nil {
			out[m.BusinessID]++
		}
	}
	return out, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

func newTestService() (*BusinessService, *memBusinessRepo, *memMembershipRepo, *recordingPublisher) {
	businessRepo := newMemBusinessRepo()
	membershipRepo := newMemMembershipRepo()
	publisher := &recordingPublisher{}
	svc := NewBusinessService(businessRepo, membershipRepo, publisher, nil, time.Second, nil)
	return svc, businessRepo, membershipRepo, publisher
}

func identity() domain.Identity {
	return domain.Identity{ID: primitive.NewObjectID(), Email: "someone@example.com"}
}

func TestCreateBusinessCreatorCanRead(t *testing.T) {
	svc, _, membershipRepo, publisher := newTestService()
	ctx := context.Background()
	alice := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if business.ID.IsZero() {
		t.Fatal("expected assigned business id")
	}

	m, err := membershipRepo.Get(ctx, business.ID, alice.ID)
	if err != nil || m == nil {
		t.Fatalf("expected creator membership, got %v (err=%v)", m, err)
	}
	if m.Role != domain.RoleCreator || m.ApprovedBy != nil {
		t.Fatalf("creator membership malformed: role=%s approved_by=%v", m.Role, m.ApprovedBy)
	}

	got, err := svc.GetBusiness(ctx, business.ID.Hex(), alice)
	if err != nil {
		t.Fatalf("creator GetBusiness: %v", err)
	}
	if got.Name != "Acme" {
		t.Fatalf("expected Acme, got %q", got.Name)
	}

	types := publisher.types()
	if len(types) != 1 || types[0] != events.TypeBusinessCreated {
		t.Fatalf("expected one business.created event, got %v", types)
	}
}

func TestGetBusinessStrangerForbidden(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	business, err := svc.CreateBusiness(ctx, "Acme", identity())
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}

	_, err = svc.GetBusiness(ctx, business.ID.Hex(), identity())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for stranger, got %v", err)
	}
}

func TestGetBusinessInvalidID(t *testing.T) {
	svc, _, _, _ := newTestService()

	_, err := svc.GetBusiness(context.Background(), "not-a-valid-id", identity())
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
}

func TestGetBusinessNotFoundBeatsForbidden(t *testing.T) {
	svc, _, _, _ := newTestService()

	// Well-formed id, no such business. Any caller gets NotFound, never
	// Forbidden, because existence is checked first.
	_, err := svc.GetBusiness(context.Background(), primitive.NewObjectID().Hex(), identity())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateBusinessPartialFailure(t *testing.T) {
	svc, _, membershipRepo, _ := newTestService()
	membershipRepo.insertErr = errors.New("write concern timeout")

	_, err := svc.CreateBusiness(context.Background(), "Acme", identity())
	var perr *domain.PartialFailureError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if perr.BusinessID == "" {
		t.Fatal("expected partial failure to carry the orphaned business id")
	}
}

func TestRequestJoinDuplicateConflict(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	bob := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", identity())
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}

	if err := svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleUser); err != nil {
		t.Fatalf("first RequestJoin: %v", err)
	}
	err = svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleAdmin)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate request, got %v", err)
	}
}

func TestRequestJoinInvalidRole(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.RequestJoin(context.Background(), primitive.NewObjectID().Hex(), identity(), domain.Role("owner"))
	if !errors.Is(err, domain.ErrInvalidID) {
		t.Fatalf("expected rejection of unknown role, got %v", err)
	}
}

func TestRequestJoinConcurrentOneWinner(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	bob := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", identity())
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}

	const attempts = 8
	errs := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleUser)
		}()
	}
	wg.Wait()
	close(errs)

	var successes, conflicts int
	for err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, domain.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("expected exactly one winner, got %d successes %d conflicts", successes, conflicts)
	}
}

func TestJoinApprovalFlow(t *testing.T) {
	svc, _, _, publisher := newTestService()
	ctx := context.Background()
	alice := identity()
	bob := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleUser); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	// Pending membership grants nothing yet.
	if _, err := svc.GetBusiness(ctx, business.ID.Hex(), bob); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected pending bob to be forbidden, got %v", err)
	}

	pending, err := svc.ListJoinRequests(ctx, business.ID.Hex(), alice)
	if err != nil {
		t.Fatalf("ListJoinRequests: %v", err)
	}
	if len(pending) != 1 || pending[0].UserID != bob.ID {
		t.Fatalf("expected bob's pending request, got %v", pending)
	}

	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), bob.ID.Hex(), alice); err != nil {
		t.Fatalf("ApproveJoinRequest: %v", err)
	}

	pending, err = svc.ListJoinRequests(ctx, business.ID.Hex(), alice)
	if err != nil {
		t.Fatalf("ListJoinRequests after approval: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("expected empty pending list, got %v", pending)
	}

	if _, err := svc.GetBusiness(ctx, business.ID.Hex(), bob); err != nil {
		t.Fatalf("approved bob should read the business: %v", err)
	}

	listed, err := svc.ListBusinessesForUser(ctx, bob)
	if err != nil {
		t.Fatalf("ListBusinessesForUser: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != business.ID {
		t.Fatalf("expected bob's business list to contain Acme, got %v", listed)
	}

	types := publisher.types()
	want := []string{events.TypeBusinessCreated, events.TypeJoinRequested, events.TypeJoinApproved}
	if len(types) != len(want) {
		t.Fatalf("expected events %v, got %v", want, types)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, types)
		}
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	svc, _, membershipRepo, _ := newTestService()
	ctx := context.Background()
	alice := identity()
	bob := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleUser); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), bob.ID.Hex(), alice); err != nil {
			t.Fatalf("ApproveJoinRequest attempt %d: %v", i+1, err)
		}
	}

	m, err := membershipRepo.Get(ctx, business.ID, bob.ID)
	if err != nil || m == nil || m.ApprovedBy == nil {
		t.Fatalf("expected approved membership, got %v (err=%v)", m, err)
	}
	if *m.ApprovedBy != alice.ID {
		t.Fatalf("expected approver %s, got %s", alice.ID.Hex(), m.ApprovedBy.Hex())
	}
}

func TestApproveZeroMatchSilentByDefault(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	alice := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}

	// No join request exists for this user; default behavior is a no-op.
	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), primitive.NewObjectID().Hex(), alice); err != nil {
		t.Fatalf("expected silent success on zero matches, got %v", err)
	}
}

func TestApproveZeroMatchStrictFlag(t *testing.T) {
	t.Setenv("FLAG_STRICT_APPROVE", "true")

	svc, _, _, _ := newTestService()
	ctx := context.Background()
	alice := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}

	err = svc.ApproveJoinRequest(ctx, business.ID.Hex(), primitive.NewObjectID().Hex(), alice)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound under strict_approve, got %v", err)
	}
}

func TestApproveOnMissingBusinessNotFound(t *testing.T) {
	svc, _, _, _ := newTestService()

	err := svc.ApproveJoinRequest(context.Background(),
		primitive.NewObjectID().Hex(), primitive.NewObjectID().Hex(), identity())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing business, got %v", err)
	}
}

func TestPlainUserCannotManageRequests(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	alice := identity()
	bob := identity()
	carol := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), bob, domain.RoleUser); err != nil {
		t.Fatalf("RequestJoin bob: %v", err)
	}
	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), bob.ID.Hex(), alice); err != nil {
		t.Fatalf("ApproveJoinRequest bob: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), carol, domain.RoleUser); err != nil {
		t.Fatalf("RequestJoin carol: %v", err)
	}

	// Bob is approved but holds role user, so he may read the business
	// while remaining unable to manage its join requests.
	if _, err := svc.ListJoinRequests(ctx, business.ID.Hex(), bob); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for plain user list, got %v", err)
	}
	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), carol.ID.Hex(), bob); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for plain user approve, got %v", err)
	}
}

func TestPendingAdminCannotManageRequests(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	alice := identity()
	dave := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), dave, domain.RoleAdmin); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}

	// A requested admin role confers nothing until approved.
	if _, err := svc.ListJoinRequests(ctx, business.ID.Hex(), dave); !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for pending admin, got %v", err)
	}
}

func TestApprovedAdminCanManageRequests(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	alice := identity()
	dave := identity()
	erin := identity()

	business, err := svc.CreateBusiness(ctx, "Acme", alice)
	if err != nil {
		t.Fatalf("CreateBusiness: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), dave, domain.RoleAdmin); err != nil {
		t.Fatalf("RequestJoin dave: %v", err)
	}
	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), dave.ID.Hex(), alice); err != nil {
		t.Fatalf("ApproveJoinRequest dave: %v", err)
	}
	if err := svc.RequestJoin(ctx, business.ID.Hex(), erin, domain.RoleUser); err != nil {
		t.Fatalf("RequestJoin erin: %v", err)
	}

	if err := svc.ApproveJoinRequest(ctx, business.ID.Hex(), erin.ID.Hex(), dave); err != nil {
		t.Fatalf("approved admin should approve requests: %v", err)
	}
	if _, err := svc.GetBusiness(ctx, business.ID.Hex(), erin); err != nil {
		t.Fatalf("erin should read the business after admin approval: %v", err)
	}
}

func TestSearchBusinesses(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	for _, name := range []string{"Acme", "Beta Corp"} {
		if _, err := svc.CreateBusiness(ctx, name, identity()); err != nil {
			t.Fatalf("CreateBusiness %s: %v", name, err)
		}
	}

	results, err := svc.SearchBusinesses(ctx, "acm")
	if err != nil {
		t.Fatalf("SearchBusinesses: %v", err)
	}
	if len(results) != 1 || results[0].Name != "Acme" {
		t.Fatalf("expected [Acme], got %v", results)
	}

	results, err = svc.SearchBusinesses(ctx, "zzz")
	if err != nil {
		t.Fatalf("SearchBusinesses: %v", err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil result, got %v", results)
	}
}

func TestListBusinessesForUserEmpty(t *testing.T) {
	svc, _, _, _ := newTestService()

	listed, err := svc.ListBusinessesForUser(context.Background(), identity())
	if err != nil {
		t.Fatalf("ListBusinessesForUser: %v", err)
	}
	if listed == nil || len(listed) != 0 {
		t.Fatalf("expected empty non-nil list, got %v", listed)
	}
}

func TestBusinessWithoutCreatorMembership(t *testing.T) {
	svc, businessRepo, _, _ := newTestService()
	ctx := context.Background()

	// Simulates the window after a partial create: the business row exists
	// with no membership at all. Reads must degrade to Forbidden, not fail.
	business := &domain.Business{Name: "Orphaned"}
	if err := businessRepo.Insert(ctx, business); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	_, err := svc.GetBusiness(ctx, business.ID.Hex(), identity())
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for orphaned business, got %v", err)
	}
}
