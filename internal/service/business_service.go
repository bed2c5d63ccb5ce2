package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/yourorg/businesshub/internal/domain"
	"github.com/yourorg/businesshub/internal/events"
	"github.com/yourorg/businesshub/internal/featureflags"
	"github.com/yourorg/businesshub/internal/observability/metrics"
	"github.com/yourorg/businesshub/internal/security"
)

// SearchCache is the slice of the redis client the search path uses. A nil
// cache disables caching without changing behavior.
type SearchCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// BusinessService orchestrates the membership and access-control workflow.
// It holds no mutable state of its own; all shared state lives in the
// repositories, and each call runs as an independent unit of work.
type BusinessService struct {
	businessRepo   domain.BusinessRepository
	membershipRepo domain.MembershipRepository
	publisher      events.Publisher
	searchCache    SearchCache
	searchTTL      time.Duration
	logger         *slog.Logger
}

// NewBusinessService creates a new business service. A nil publisher is
// replaced with a no-op one; a nil cache disables search caching.
func NewBusinessService(
	businessRepo domain.BusinessRepository,
	membershipRepo domain.MembershipRepository,
	publisher events.Publisher,
	searchCache SearchCache,
	searchTTL time.Duration,
	logger *slog.Logger,
) *BusinessService {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}

	return &BusinessService{
		businessRepo:   businessRepo,
		membershipRepo: membershipRepo,
		publisher:      publisher,
		searchCache:    searchCache,
		searchTTL:      searchTTL,
		logger:         logger,
	}
}

// CreateBusiness inserts the business, then the creator membership. The two
// writes are deliberately not transactional: if the membership write fails
// the caller gets a PartialFailureError carrying the business id, so it can
// retry the membership instead of creating a duplicate business.
func (s *BusinessService) CreateBusiness(ctx context.Context, name string, caller domain.Identity) (*domain.Business, error) {
	start := time.Now()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("business name is required")
	}

	business := &domain.Business{Name: name}
	if err := s.businessRepo.Insert(ctx, business); err != nil {
		s.observe("create_business", start, err)
		return nil, err
	}

	membership := &domain.Membership{
		BusinessID: business.ID,
		UserID:     caller.ID,
		Role:       domain.RoleCreator,
		JoinedAt:   time.Now(),
	}
	if err := s.membershipRepo.Insert(ctx, membership); err != nil {
		s.logger.Error("creator membership write failed after business insert",
			slog.String("business_id", business.ID.Hex()),
			slog.String("user_id", caller.ID.Hex()),
			slog.String("error", err.Error()),
		)
		perr := &domain.PartialFailureError{BusinessID: business.ID.Hex(), Err: err}
		s.observe("create_business", start, perr)
		return nil, perr
	}

	if s.searchCache != nil {
		if err := s.searchCache.DeleteByPattern(ctx, "search:*"); err != nil {
			s.logger.Warn("failed to invalidate search cache", slog.String("error", err.Error()))
		}
	}

	event := events.NewEvent(events.TypeBusinessCreated, business.ID.Hex())
	event.ActorID = caller.ID.Hex()
	s.publish(ctx, event)

	s.logger.Info("business created",
		slog.String("business_id", business.ID.Hex()),
		slog.String("creator_id", caller.ID.Hex()),
	)
	s.observe("create_business", start, nil)
	return business, nil
}

// GetBusiness returns the business when the caller holds an approved
// membership on it. Existence is checked before authorization, so NotFound
// and Forbidden differ only by whether the business exists.
func (s *BusinessService) GetBusiness(ctx context.Context, businessID string, caller domain.Identity) (*domain.Business, error) {
	start := time.Now()

	id, err := domain.ParseID(businessID)
	if err != nil {
		s.observe("get_business", start, err)
		return nil, err
	}

	business, err := s.businessRepo.GetByID(ctx, id)
	if err != nil {
		s.observe("get_business", start, err)
		return nil, err
	}

	membership, err := s.membershipRepo.Get(ctx, id, caller.ID)
	if err != nil {
		s.observe("get_business", start, err)
		return nil, err
	}
	if !security.Approved(membership) {
		err := fmt.Errorf("user %s has no approved membership on business %s: %w",
			caller.ID.Hex(), id.Hex(), domain.ErrForbidden)
		s.observe("get_business", start, err)
		return nil, err
	}

	s.observe("get_business", start, nil)
	return business, nil
}

// ListBusinessesForUser returns every business the caller holds an approved
// membership on. A caller with no memberships gets an empty list.
func (s *BusinessService) ListBusinessesForUser(ctx context.Context, caller domain.Identity) ([]*domain.Business, error) {
	start := time.Now()

	memberships, err := s.membershipRepo.ListApprovedByUser(ctx, caller.ID)
	if err != nil {
		s.observe("list_businesses", start, err)
		return nil, err
	}

	seen := make(map[primitive.ObjectID]bool, len(memberships))
	ids := make([]primitive.ObjectID, 0, len(memberships))
	for _, m := range memberships {
		if !seen[m.BusinessID] {
			seen[m.BusinessID] = true
			ids = append(ids, m.BusinessID)
		}
	}

	businesses, err := s.businessRepo.GetByIDs(ctx, ids)
	if err != nil {
		s.observe("list_businesses", start, err)
		return nil, err
	}
	if businesses == nil {
		businesses = []*domain.Business{}
	}

	s.observe("list_businesses", start, nil)
	return businesses, nil
}

// SearchBusinesses matches the query case-insensitively against business
// names. Search carries no authorization gate; an empty result is a valid
// answer, not an error.
func (s *BusinessService) SearchBusinesses(ctx context.Context, query string) ([]*domain.Business, error) {
	start := time.Now()

	query = strings.TrimSpace(query)
	cacheKey := "search:" + strings.ToLower(query)

	if s.searchCache != nil {
		var cached []*domain.Business
		hit, err := s.searchCache.GetJSON(ctx, cacheKey, &cached)
		if err != nil {
			s.logger.Warn("search cache read failed", slog.String("error", err.Error()))
		} else if hit {
			s.observe("search_businesses", start, nil)
			return cached, nil
		}
	}

	businesses, err := s.businessRepo.SearchByName(ctx, query)
	if err != nil {
		s.observe("search_businesses", start, err)
		return nil, err
	}
	if businesses == nil {
		businesses = []*domain.Business{}
	}

	if s.searchCache != nil {
		if err := s.searchCache.SetJSON(ctx, cacheKey, businesses, s.searchTTL); err != nil {
			s.logger.Warn("search cache write failed", slog.String("error", err.Error()))
		}
	}

	s.observe("search_businesses", start, nil)
	return businesses, nil
}

// RequestJoin inserts a pending membership for the caller. The store's
// unique index is the duplicate guard: a second request for the same
// (business, user) pair fails Conflict whatever its approval state. A
// requested creator role gets no special treatment; it stays pending until
// approved like any other role.
func (s *BusinessService) RequestJoin(ctx context.Context, businessID string, caller domain.Identity, role domain.Role) error {
	start := time.Now()

	id, err := domain.ParseID(businessID)
	if err != nil {
		s.observe("request_join", start, err)
		return err
	}
	if !role.Valid() {
		err := fmt.Errorf("role %q outside the fixed role set: %w", role, domain.ErrInvalidID)
		s.observe("request_join", start, err)
		return err
	}

	membership := &domain.Membership{
		BusinessID: id,
		UserID:     caller.ID,
		Role:       role,
		JoinedAt:   time.Now(),
	}
	if err := s.membershipRepo.Insert(ctx, membership); err != nil {
		s.observe("request_join", start, err)
		return err
	}

	event := events.NewEvent(events.TypeJoinRequested, id.Hex())
	event.UserID = caller.ID.Hex()
	event.Role = string(role)
	s.publish(ctx, event)

	s.logger.Info("join request created",
		slog.String("business_id", id.Hex()),
		slog.String("user_id", caller.ID.Hex()),
		slog.String("role", string(role)),
	)
	s.observe("request_join", start, nil)
	return nil
}

// ListJoinRequests returns the pending membership set of a business. Only
// the creator or an approved admin may list; an approved plain user may not.
func (s *BusinessService) ListJoinRequests(ctx context.Context, businessID string, caller domain.Identity) ([]*domain.Membership, error) {
	start := time.Now()

	id, err := domain.ParseID(businessID)
	if err != nil {
		s.observe("list_join_requests", start, err)
		return nil, err
	}

	if err := s.authorizeManager(ctx, id, caller); err != nil {
		s.observe("list_join_requests", start, err)
		return nil, err
	}

	pending, err := s.membershipRepo.ListPendingByBusiness(ctx, id)
	if err != nil {
		s.observe("list_join_requests", start, err)
		return nil, err
	}
	if pending == nil {
		pending = []*domain.Membership{}
	}

	s.observe("list_join_requests", start, nil)
	return pending, nil
}

// ApproveJoinRequest stamps the caller as approver on the target's
// membership. The update is idempotent: re-approving re-applies the same
// approver without error. By default an approval matching no membership is
// a silent no-op to match the historic behavior; the strict_approve flag
// hardens it to NotFound.
func (s *BusinessService) ApproveJoinRequest(ctx context.Context, businessID, targetUserID string, caller domain.Identity) error {
	start := time.Now()

	id, err := domain.ParseID(businessID)
	if err != nil {
		s.observe("approve_join_request", start, err)
		return err
	}
	targetID, err := domain.ParseID(targetUserID)
	if err != nil {
		s.observe("approve_join_request", start, err)
		return err
	}

	if err := s.authorizeManager(ctx, id, caller); err != nil {
		s.observe("approve_join_request", start, err)
		return err
	}

	matched, err := s.membershipRepo.SetApprovedBy(ctx, id, targetID, caller.ID)
	if err != nil {
		s.observe("approve_join_request", start, err)
		return err
	}
	if matched == 0 {
		s.logger.Warn("approval matched no membership",
			slog.String("business_id", id.Hex()),
			slog.String("target_user_id", targetID.Hex()),
		)
		if featureflags.Enabled(featureflags.StrictApprove) {
			err := fmt.Errorf("no membership for user %s on business %s: %w",
				targetID.Hex(), id.Hex(), domain.ErrNotFound)
			s.observe("approve_join_request", start, err)
			return err
		}
		s.observe("approve_join_request", start, nil)
		return nil
	}

	event := events.NewEvent(events.TypeJoinApproved, id.Hex())
	event.UserID = targetID.Hex()
	event.ActorID = caller.ID.Hex()
	s.publish(ctx, event)

	s.logger.Info("join request approved",
		slog.String("business_id", id.Hex()),
		slog.String("target_user_id", targetID.Hex()),
		slog.String("approver_id", caller.ID.Hex()),
	)
	s.observe("approve_join_request", start, nil)
	return nil
}

// authorizeManager checks business existence first, then the privileged
// gate: the caller must be the creator or an approved admin.
func (s *BusinessService) authorizeManager(ctx context.Context, businessID primitive.ObjectID, caller domain.Identity) error {
	if _, err := s.businessRepo.GetByID(ctx, businessID); err != nil {
		return err
	}

	membership, err := s.membershipRepo.Get(ctx, businessID, caller.ID)
	if err != nil {
		return err
	}
	if !security.CanManageRequests(membership) {
		return fmt.Errorf("user %s may not manage join requests on business %s: %w",
			caller.ID.Hex(), businessID.Hex(), domain.ErrForbidden)
	}
	return nil
}

// publish emits a notification event best-effort. Events are not part of
// the operation contract, so publish failures are logged and dropped.
func (s *BusinessService) publish(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		metrics.ObserveEventPublished(event.Type, "error")
		s.logger.Warn("failed to publish event",
			slog.String("event_type", event.Type),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.ObserveEventPublished(event.Type, "success")
}

func (s *BusinessService) observe(operation string, start time.Time, err error) {
	metrics.ObserveOperation(operation, errClass(err), time.Since(start))
}

func errClass(err error) string {
	var perr *domain.PartialFailureError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrInvalidID):
		return "invalid_id"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.As(err, &perr):
		return "partial_failure"
	default:
		return "error"
	}
}
