package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/storage"
	"go-loyalty-store/internal/ws"
	"go-loyalty-store/pkg/logger"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type RewardService interface {
	ListTasks(ctx context.Context, userID uuid.UUID) (*TaskList, error)
	SubmitClaim(ctx context.Context, userID uuid.UUID, req *SubmitClaimRequest) (*model.RewardClaim, error)
	UpdateClaimStatus(ctx context.Context, claimID uuid.UUID, req *ReviewClaimRequest, adminID uuid.UUID) (*ReviewResult, error)
	GetUserClaims(ctx context.Context, userID uuid.UUID) ([]model.RewardClaim, error)
	GetAllClaims(ctx context.Context, filter ClaimListFilter) (*ClaimList, error)
	GetClaim(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error)
}

// ProofFile is an uploaded proof. FieldName is the multipart field it came in.
type ProofFile struct {
	FieldName   string
	Filename    string
	ContentType string
	Data        []byte
}

type SubmitClaimRequest struct {
	TaskID    string          `json:"task_id" form:"task_id" validate:"notblank"`
	ProofType model.ProofType `json:"proof_type" form:"proof_type"`
	ProofText string          `json:"proof_text" form:"proof_text"`
	File      *ProofFile      `json:"-" form:"-"`
}

type ReviewClaimRequest struct {
	Status model.ClaimStatus `json:"status" validate:"required"`
	Notes  string            `json:"admin_notes"`
}

type ReviewResult struct {
	Claim *model.RewardClaim `json:"claim"`
	Bonus *model.RewardClaim `json:"bonus,omitempty"`
}

type TaskView struct {
	model.RewardTask
	Status *model.ClaimStatus `json:"claim_status,omitempty"`
}

type TaskList struct {
	Tasks       []TaskView `json:"tasks"`
	BonusAmount int        `json:"completion_bonus"`
	BonusEarned bool       `json:"completion_bonus_earned"`
}

type ClaimListFilter struct {
	Status *model.ClaimStatus
	UserID *uuid.UUID
	TaskID string
	Page   int
	Limit  int
}

type ClaimList struct {
	Items []model.RewardClaim `json:"items"`
	Meta  model.Page          `json:"meta"`
}

type rewardService struct {
	db        *gorm.DB
	catalog   *TaskCatalog
	claimRepo repository.RewardClaimRepository
	userRepo  repository.UserRepository
	ledger    *ledger
	proofs    storage.ProofStore
	events    ws.Broadcaster
	now       func() time.Time
}

func NewRewardService(
	db *gorm.DB,
	catalog *TaskCatalog,
	claimRepo repository.RewardClaimRepository,
	userRepo repository.UserRepository,
	pointsRepo repository.PointsRepository,
	proofs storage.ProofStore,
	events ws.Broadcaster,
) RewardService {
	return &rewardService{
		db:        db,
		catalog:   catalog,
		claimRepo: claimRepo,
		userRepo:  userRepo,
		ledger:    &ledger{userRepo: userRepo, pointsRepo: pointsRepo},
		proofs:    proofs,
		events:    events,
		now:       time.Now,
	}
}

func (s *rewardService) ListTasks(ctx context.Context, userID uuid.UUID) (*TaskList, error) {
	claims, err := s.claimRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user claims")
	}
	statuses := make(map[string]model.ClaimStatus, len(claims))
	for _, c := range claims {
		statuses[c.TaskID] = c.Status
	}

	list := &TaskList{BonusAmount: s.catalog.BonusAmount()}
	for _, t := range s.catalog.Tasks() {
		view := TaskView{RewardTask: t}
		if st, ok := statuses[t.ID]; ok {
			view.Status = &st
		}
		list.Tasks = append(list.Tasks, view)
	}
	_, list.BonusEarned = statuses[model.CompletionBonusTaskID]
	return list, nil
}

// classifyProof sniffs an upload and picks its proof slot. A form field
// named after a slot has to agree with the content.
func classifyProof(f *ProofFile) (model.ProofType, string, error) {
	media, err := storage.SniffMedia(f.Data, f.ContentType)
	if err != nil {
		return "", "", apperror.ErrUnsupportedProof.WithDetails(err.Error())
	}
	kind := model.ProofType(media.Class)
	switch field := model.ProofType(strings.ToLower(f.FieldName)); field {
	case model.ProofImage, model.ProofAudio, model.ProofVideo:
		if field != kind {
			return "", "", apperror.ErrUnsupportedProof.WithDetails(fmt.Sprintf("%s field holds %s content", field, media.MIME))
		}
	}
	return kind, media.MIME, nil
}

func (s *rewardService) SubmitClaim(ctx context.Context, userID uuid.UUID, req *SubmitClaimRequest) (*model.RewardClaim, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if req.ProofType != "" && !req.ProofType.Valid() {
		return nil, apperror.Validation("proof_type must be text, image, audio or video")
	}

	task, ok := s.catalog.Lookup(strings.TrimSpace(req.TaskID))
	if !ok {
		return nil, apperror.ErrUnknownTask.WithDetails(req.TaskID)
	}
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, lookupErr(err, apperror.ErrUserNotFound, "find user")
	}

	_, err := s.claimRepo.FindByUserAndTask(ctx, userID, task.ID)
	switch {
	case err == nil:
		return nil, apperror.ErrAlreadyClaimed
	case !repository.IsNotFound(err):
		return nil, errors.Wrap(err, "check existing claim")
	}

	claim := &model.RewardClaim{
		UserID:    userID,
		TaskID:    task.ID,
		TaskTitle: task.Title,
		Amount:    task.Amount,
		Status:    model.ClaimPending,
	}
	claim.CreatedBy = userID.String()
	claim.UpdatedBy = userID.String()

	var proofKey string
	if req.File != nil {
		kind, contentType, err := classifyProof(req.File)
		if err != nil {
			return nil, err
		}
		if req.ProofType != "" && req.ProofType != model.ProofText && req.ProofType != kind {
			return nil, apperror.ErrUnsupportedProof.WithDetails(fmt.Sprintf("%s proof sent with %s content", req.ProofType, contentType))
		}
		proofKey = fmt.Sprintf("claims/%s/%s-%s%s", userID, task.ID, uuid.NewString(), strings.ToLower(filepath.Ext(req.File.Filename)))
		url, err := s.proofs.Store(ctx, proofKey, contentType, req.File.Data)
		if err != nil {
			return nil, errors.Wrap(err, "store proof")
		}
		claim.SetProofURL(kind, url)
		claim.ProofText = strings.TrimSpace(req.ProofText)
	} else {
		if req.ProofType != "" && req.ProofType != model.ProofText {
			return nil, apperror.ErrUnsupportedProof.WithDetails(fmt.Sprintf("%s proof requires a file", req.ProofType))
		}
		text := strings.TrimSpace(req.ProofText)
		if text == "" {
			return nil, apperror.Validation("proof text is required")
		}
		claim.ProofType = model.ProofText
		claim.ProofText = text
	}

	if err := s.claimRepo.Create(ctx, claim); err != nil {
		s.discardProof(ctx, proofKey)
		if repository.IsUniqueViolation(err) {
			return nil, apperror.ErrAlreadyClaimed
		}
		return nil, errors.Wrap(err, "create claim")
	}

	logger.Info("reward claim submitted",
		zap.String("claim_id", claim.ID.String()),
		zap.String("user_id", userID.String()),
		zap.String("task_id", task.ID),
		zap.String("proof_type", string(claim.ProofType)),
	)
	s.events.Publish(ws.EventClaimSubmitted, map[string]interface{}{
		"claim_id":   claim.ID,
		"user_id":    userID,
		"task_id":    task.ID,
		"task_title": task.Title,
	})
	return claim, nil
}

// discardProof removes an upload whose claim was never stored.
func (s *rewardService) discardProof(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.proofs.Delete(ctx, key); err != nil && !storage.IsNotExist(err) {
		logger.Warn("failed to remove orphaned proof", zap.String("key", key), zap.Error(err))
	}
}

// UpdateClaimStatus approves or rejects a pending claim. Approval credits the
// claim amount to the user's balance and may grant the completion bonus.
// Repeating the status a claim already has changes nothing.
func (s *rewardService) UpdateClaimStatus(ctx context.Context, claimID uuid.UUID, req *ReviewClaimRequest, adminID uuid.UUID) (*ReviewResult, error) {
	if req.Status != model.ClaimApproved && req.Status != model.ClaimRejected {
		return nil, apperror.ErrInvalidClaimStatus.WithDetails(string(req.Status))
	}

	var (
		bonus   *model.RewardClaim
		changed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claims := s.claimRepo.WithTx(tx)

		claim, err := claims.FindByIDForUpdate(ctx, claimID)
		if err != nil {
			return lookupErr(err, apperror.ErrClaimNotFound, "lock claim")
		}
		if claim.Status == req.Status {
			return nil
		}
		if claim.Status != model.ClaimPending {
			return apperror.ErrClaimAlreadyReviewed.WithDetails(string(claim.Status))
		}
		changed = true

		now := s.now()
		claim.Status = req.Status
		claim.AdminNotes = req.Notes
		claim.UpdatedBy = adminID.String()
		if req.Status == model.ClaimRejected {
			claim.RejectedAt = &now
			claim.RejectedByID = &adminID
			return errors.Wrap(claims.Update(ctx, claim), "reject claim")
		}

		claim.ApprovedAt = &now
		claim.ApprovedByID = &adminID
		if err := claims.Update(ctx, claim); err != nil {
			return errors.Wrap(err, "approve claim")
		}
		if err := s.credit(ctx, tx, claim, adminID); err != nil {
			return err
		}

		bonus, err = s.grantCompletionBonus(ctx, tx, claim.UserID, adminID)
		return err
	})
	if err != nil {
		return nil, err
	}

	claim, err := s.claimRepo.FindByID(ctx, claimID)
	if err != nil {
		return nil, errors.Wrap(err, "reload claim")
	}
	if !changed {
		return &ReviewResult{Claim: claim}, nil
	}

	logger.Info("reward claim reviewed",
		zap.String("claim_id", claim.ID.String()),
		zap.String("status", string(claim.Status)),
		zap.String("admin_id", adminID.String()),
		zap.Bool("bonus_granted", bonus != nil),
	)
	s.events.Publish(ws.EventClaimReviewed, map[string]interface{}{
		"claim_id": claim.ID,
		"user_id":  claim.UserID,
		"task_id":  claim.TaskID,
		"status":   claim.Status,
	})
	if bonus != nil {
		s.events.Publish(ws.EventClaimReviewed, map[string]interface{}{
			"claim_id": bonus.ID,
			"user_id":  bonus.UserID,
			"task_id":  bonus.TaskID,
			"status":   bonus.Status,
		})
	}
	return &ReviewResult{Claim: claim, Bonus: bonus}, nil
}

// credit posts an approved claim's amount to the ledger.
func (s *rewardService) credit(ctx context.Context, tx *gorm.DB, claim *model.RewardClaim, adminID uuid.UUID) error {
	if claim.Amount <= 0 {
		return nil
	}
	entry := ledgerEntry{
		UserID:        claim.UserID,
		AdjustedByID:  adminID,
		Type:          model.AdjustmentAdd,
		Points:        claim.Amount,
		Reason:        "Reward approved: " + claim.TaskTitle,
		Notes:         claim.AdminNotes,
		RewardClaimID: &claim.ID,
	}
	if _, ok := s.catalog.Lookup(claim.TaskID); ok {
		taskID := claim.TaskID
		entry.RewardTaskID = &taskID
	}
	_, _, err := s.ledger.post(ctx, tx, entry)
	return err
}

// grantCompletionBonus creates the approved bonus claim once every required
// task is approved. The insert runs in a savepoint so a concurrent grant
// hitting the unique index leaves the outer transaction usable.
func (s *rewardService) grantCompletionBonus(ctx context.Context, tx *gorm.DB, userID, adminID uuid.UUID) (*model.RewardClaim, error) {
	claims := s.claimRepo.WithTx(tx)

	approved, err := claims.ApprovedTaskIDs(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "approved tasks")
	}
	if !s.catalog.CompletesRequired(approved) {
		return nil, nil
	}

	_, err = claims.FindByUserAndTask(ctx, userID, model.CompletionBonusTaskID)
	if err == nil {
		return nil, nil
	}
	if !repository.IsNotFound(err) {
		return nil, errors.Wrap(err, "check bonus claim")
	}

	now := s.now()
	bonus := &model.RewardClaim{
		UserID:       userID,
		TaskID:       model.CompletionBonusTaskID,
		TaskTitle:    "Completion bonus",
		Amount:       s.catalog.BonusAmount(),
		Status:       model.ClaimApproved,
		ProofType:    model.ProofText,
		ProofText:    "All required tasks approved",
		ApprovedByID: &adminID,
		ApprovedAt:   &now,
	}
	bonus.CreatedBy = adminID.String()
	bonus.UpdatedBy = adminID.String()

	err = tx.Transaction(func(sp *gorm.DB) error {
		if err := s.claimRepo.WithTx(sp).Create(ctx, bonus); err != nil {
			return err
		}
		return s.credit(ctx, sp, bonus, adminID)
	})
	if repository.IsUniqueViolation(err) {
		logger.Debug("completion bonus already granted", zap.String("user_id", userID.String()))
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "grant completion bonus")
	}
	return bonus, nil
}

func (s *rewardService) GetUserClaims(ctx context.Context, userID uuid.UUID) ([]model.RewardClaim, error) {
	claims, err := s.claimRepo.FindByUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list user claims")
	}
	return claims, nil
}

func (s *rewardService) GetAllClaims(ctx context.Context, filter ClaimListFilter) (*ClaimList, error) {
	if filter.Status != nil {
		switch *filter.Status {
		case model.ClaimPending, model.ClaimApproved, model.ClaimRejected:
		default:
			return nil, apperror.Validation("status must be pending, approved or rejected")
		}
	}
	page, limit := model.NormalizePage(filter.Page, filter.Limit)

	claims, total, err := s.claimRepo.FindAll(ctx, repository.ClaimFilter{
		Status: filter.Status,
		UserID: filter.UserID,
		TaskID: filter.TaskID,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return nil, errors.Wrap(err, "list claims")
	}
	return &ClaimList{Items: claims, Meta: model.NewPage(page, limit, total)}, nil
}

func (s *rewardService) GetClaim(ctx context.Context, id uuid.UUID) (*model.RewardClaim, error) {
	claim, err := s.claimRepo.FindByID(ctx, id)
	if err != nil {
		return nil, lookupErr(err, apperror.ErrClaimNotFound, "find claim")
	}
	return claim, nil
}
