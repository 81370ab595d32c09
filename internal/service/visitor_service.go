package service

import (
	"context"
	"strings"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type VisitorService interface {
	CheckIn(ctx context.Context, phone string) (*model.Visitor, error)
	AdminCheckIn(ctx context.Context, userID, adminID uuid.UUID) (*model.Visitor, error)
	Archive(ctx context.Context, id uuid.UUID) (*model.Visitor, error)
	Unarchive(ctx context.Context, id uuid.UUID) (*model.Visitor, error)
	List(ctx context.Context, filter VisitorListFilter) (*VisitorList, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Visitor, error)
}

type CheckInRequest struct {
	Phone string `json:"phone" validate:"notblank,max=20"`
}

type VisitorListFilter struct {
	IncludeArchived bool
	ArchivedOnly    bool
	MembersOnly     bool
	Search          string
	Page            int
	Limit           int
}

type VisitorList struct {
	Items []model.Visitor `json:"items"`
	Meta  model.Page      `json:"meta"`
}

type visitorService struct {
	db          *gorm.DB
	visitorRepo repository.VisitorRepository
	userRepo    repository.UserRepository
	events      ws.Broadcaster
	now         func() time.Time
}

func NewVisitorService(db *gorm.DB, visitorRepo repository.VisitorRepository, userRepo repository.UserRepository, events ws.Broadcaster) VisitorService {
	return &visitorService{
		db:          db,
		visitorRepo: visitorRepo,
		userRepo:    userRepo,
		events:      events,
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// CheckIn records a self check-in for the registered user owning phone.
func (s *visitorService) CheckIn(ctx context.Context, phone string) (*model.Visitor, error) {
	phone = strings.TrimSpace(phone)
	if err := validate(&CheckInRequest{Phone: phone}); err != nil {
		return nil, err
	}

	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrNotRegistered, "find user by phone")
	}

	visitor, err := s.upsert(ctx, user, model.CheckInSelf, nil)
	if err != nil {
		return nil, err
	}
	s.announce(visitor, model.CheckInSelf)
	return visitor, nil
}

// AdminCheckIn records a check-in on the user's behalf, tagged with the admin.
func (s *visitorService) AdminCheckIn(ctx context.Context, userID, adminID uuid.UUID) (*model.Visitor, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}

	visitor, err := s.upsert(ctx, user, model.CheckInAdmin, &adminID)
	if err != nil {
		return nil, err
	}
	s.announce(visitor, model.CheckInAdmin)
	return visitor, nil
}

// upsert appends a visit to the user's visitor record, creating it on first
// visit. Two first visits racing on the phone index resolve by retrying the
// loser once, which then finds the winner's row.
func (s *visitorService) upsert(ctx context.Context, user *model.User, source model.CheckInSource, adminID *uuid.UUID) (*model.Visitor, error) {
	visitor, err := s.upsertOnce(ctx, user, source, adminID)
	if repository.IsUniqueViolation(err) {
		logger.Debug("visitor created concurrently, retrying check-in", zap.String("user_id", user.ID.String()))
		visitor, err = s.upsertOnce(ctx, user, source, adminID)
	}
	if err != nil {
		return nil, err
	}
	return visitor, nil
}

func (s *visitorService) upsertOnce(ctx context.Context, user *model.User, source model.CheckInSource, adminID *uuid.UUID) (*model.Visitor, error) {
	var visitor *model.Visitor
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visitors := s.visitorRepo.WithTx(tx)

		existing, err := s.findForUser(ctx, visitors, user)
		if err != nil {
			return err
		}

		now := s.now()
		actor := user.ID.String()
		if adminID != nil {
			actor = adminID.String()
		}

		if existing == nil {
			visitor = &model.Visitor{}
			visitor.Promote(user)
			visitor.RecordVisit(now, source, adminID)
			visitor.CreatedBy = actor
			visitor.UpdatedBy = actor
			return visitors.Create(ctx, visitor)
		}

		visitor = existing
		visitor.Promote(user)
		visitor.RecordVisit(now, source, adminID)
		visitor.UpdatedBy = actor
		return errors.Wrap(visitors.Save(ctx, visitor), "save visitor")
	})
	if err != nil {
		return nil, err
	}
	return visitor, nil
}

// findForUser locks the visitor linked to user, falling back to the user's
// phone for walk-in records created before the account was linked.
func (s *visitorService) findForUser(ctx context.Context, visitors repository.VisitorRepository, user *model.User) (*model.Visitor, error) {
	v, err := visitors.FindByUserIDForUpdate(ctx, user.ID)
	if err == nil {
		return v, nil
	}
	if !repository.IsNotFound(err) {
		return nil, errors.Wrap(err, "lock visitor by user")
	}
	if user.Phone == "" {
		return nil, nil
	}

	v, err = visitors.FindByPhoneForUpdate(ctx, user.Phone)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "lock visitor by phone")
	}
	if v.UserID != nil && *v.UserID != user.ID {
		return nil, apperror.ErrPhoneExists.WithDetails("visitor record is linked to another member")
	}
	return v, nil
}

func (s *visitorService) announce(v *model.Visitor, source model.CheckInSource) {
	logger.Info("visitor checked in",
		zap.String("visitor_id", v.ID.String()),
		zap.String("source", string(source)),
		zap.Int("visit_count", v.VisitCount),
	)
	s.events.Publish(ws.EventVisitorCheckedIn, map[string]interface{}{
		"visitor_id":  v.ID,
		"name":        v.Name,
		"visit_count": v.VisitCount,
		"source":      source,
	})
}

func (s *visitorService) Archive(ctx context.Context, id uuid.UUID) (*model.Visitor, error) {
	now := s.now()
	return s.setArchived(ctx, id, true, &now)
}

func (s *visitorService) Unarchive(ctx context.Context, id uuid.UUID) (*model.Visitor, error) {
	return s.setArchived(ctx, id, false, nil)
}

func (s *visitorService) setArchived(ctx context.Context, id uuid.UUID, archived bool, at *time.Time) (*model.Visitor, error) {
	if err := s.visitorRepo.SetArchived(ctx, id, archived, at); err != nil {
		return nil, lookupErr(err, apperror.ErrVisitorNotFound, "archive visitor")
	}
	return s.Get(ctx, id)
}

func (s *visitorService) List(ctx context.Context, filter VisitorListFilter) (*VisitorList, error) {
	page, limit := model.NormalizePage(filter.Page, filter.Limit)
	items, total, err := s.visitorRepo.FindAll(ctx, repository.VisitorFilter{
		IncludeArchived: filter.IncludeArchived,
		ArchivedOnly:    filter.ArchivedOnly,
		MembersOnly:     filter.MembersOnly,
		Search:          filter.Search,
		Page:            page,
		Limit:           limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list visitors")
	}
	return &VisitorList{Items: items, Meta: model.NewPage(page, limit, total)}, nil
}

func (s *visitorService) Get(ctx context.Context, id uuid.UUID) (*model.Visitor, error) {
	v, err := s.visitorRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrVisitorNotFound, "find visitor")
	}
	return v, nil
}
