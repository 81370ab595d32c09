package service

import (
	"context"
	"testing"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/repository"
	"go-loyalty-store/internal/storage"
	"go-loyalty-store/internal/ws"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testBonus = 15

func newRewardService(t *testing.T, e *testEnv) RewardService {
	t.Helper()
	catalog, err := LoadTaskCatalog(context.Background(), e.tasks, testBonus)
	require.NoError(t, err)
	return NewRewardService(e.db, catalog, e.claims, e.users, e.points, e.proofs, e.events)
}

func textClaim(taskID string) *SubmitClaimRequest {
	return &SubmitClaimRequest{TaskID: taskID, ProofType: model.ProofText, ProofText: "done, see @storefront"}
}

func approve(t *testing.T, svc RewardService, claimID, adminID uuid.UUID) *ReviewResult {
	t.Helper()
	res, err := svc.UpdateClaimStatus(context.Background(), claimID, &ReviewClaimRequest{Status: model.ClaimApproved}, adminID)
	require.NoError(t, err)
	return res
}

var (
	pngProof  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")
	jpegProof = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01\x01\x00\x00\x01\x00\x01\x00\x00")
	mp3Proof  = []byte("ID3\x03\x00\x00\x00\x00\x00\x0a")
	svgProof  = []byte(`<svg xmlns="http://www.w3.org/2000/svg"><script>alert(document.cookie)</script></svg>`)
)

func TestClassifyProof(t *testing.T) {
	cases := []struct {
		name     string
		file     ProofFile
		want     model.ProofType
		wantMIME string
	}{
		{"declared png", ProofFile{FieldName: "file", ContentType: "image/png", Data: pngProof}, model.ProofImage, "image/png"},
		{"mp3 alias", ProofFile{FieldName: "file", ContentType: "audio/mp3", Data: mp3Proof}, model.ProofAudio, "audio/mpeg"},
		{"generic declaration", ProofFile{FieldName: "image", ContentType: "application/octet-stream", Data: jpegProof}, model.ProofImage, "image/jpeg"},
		{"no declaration", ProofFile{FieldName: "audio", Data: mp3Proof}, model.ProofAudio, "audio/mpeg"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, mime, err := classifyProof(&tc.file)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.wantMIME, mime)
		})
	}
}

func TestClassifyProof_Rejects(t *testing.T) {
	cases := []struct {
		name string
		file ProofFile
	}{
		{"svg with script", ProofFile{FieldName: "image", ContentType: "image/svg+xml", Data: svgProof}},
		{"svg declared as png", ProofFile{FieldName: "image", ContentType: "image/png", Data: svgProof}},
		{"html", ProofFile{FieldName: "file", ContentType: "text/html", Data: []byte("<html><script>alert(1)</script></html>")}},
		{"pdf", ProofFile{FieldName: "file", ContentType: "application/pdf", Data: []byte("%PDF-1.4\n")}},
		{"declared type disagrees", ProofFile{FieldName: "file", ContentType: "video/mp4", Data: pngProof}},
		{"field disagrees", ProofFile{FieldName: "video", ContentType: "image/png", Data: pngProof}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := classifyProof(&tc.file)
			assert.ErrorIs(t, err, apperror.ErrUnsupportedProof)
		})
	}
}

func TestSubmitClaim_Text(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	user := e.user(t, "u@example.com", "")

	claim, err := svc.SubmitClaim(context.Background(), user.ID, textClaim("google-review"))
	require.NoError(t, err)
	assert.Equal(t, model.ClaimPending, claim.Status)
	assert.Equal(t, "Leave a Google review", claim.TaskTitle)
	assert.Equal(t, 10, claim.Amount)
	assert.Equal(t, model.ProofText, claim.ProofType)
	assert.Equal(t, []string{ws.EventClaimSubmitted}, e.events.Types())
}

func TestSubmitClaim_FileGoesToBlobStore(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	user := e.user(t, "u@example.com", "")

	claim, err := svc.SubmitClaim(ctx, user.ID, &SubmitClaimRequest{
		TaskID: "share-story",
		File:   &ProofFile{FieldName: "file", Filename: "Story.JPG", ContentType: "image/jpeg", Data: jpegProof},
	})
	require.NoError(t, err)

	assert.Equal(t, model.ProofImage, claim.ProofType)
	assert.NotEmpty(t, claim.ProofImageURL)
	assert.Empty(t, claim.ProofAudioURL)
	assert.Empty(t, claim.ProofVideoURL)
	assert.Contains(t, claim.ProofImageURL, "/uploads/claims/"+user.ID.String()+"/share-story-")
	assert.Contains(t, claim.ProofImageURL, ".jpg")

	key := claim.ProofImageURL[len("/uploads/"):]
	data, contentType, err := e.proofs.Open(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, jpegProof, data)
	assert.Equal(t, "image/jpeg", contentType)
}

func TestSubmitClaim_StoresSniffedType(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	user := e.user(t, "u@example.com", "")

	claim, err := svc.SubmitClaim(ctx, user.ID, &SubmitClaimRequest{
		TaskID:    "share-story",
		ProofType: model.ProofAudio,
		File:      &ProofFile{FieldName: "file", Filename: "voice.mp3", ContentType: "application/octet-stream", Data: mp3Proof},
	})
	require.NoError(t, err)
	require.NotEmpty(t, claim.ProofAudioURL)

	_, contentType, err := e.proofs.Open(ctx, claim.ProofAudioURL[len("/uploads/"):])
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", contentType)
}

func TestSubmitClaim_Errors(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	user := e.user(t, "u@example.com", "")

	_, err := svc.SubmitClaim(ctx, user.ID, textClaim("google-review"))
	require.NoError(t, err)

	cases := []struct {
		name   string
		userID uuid.UUID
		req    *SubmitClaimRequest
		want   error
	}{
		{"unknown task", user.ID, textClaim("climb-everest"), apperror.ErrUnknownTask},
		{"bonus is not claimable", user.ID, textClaim(model.CompletionBonusTaskID), apperror.ErrUnknownTask},
		{"duplicate", user.ID, textClaim("google-review"), apperror.ErrAlreadyClaimed},
		{"unknown user", uuid.New(), textClaim("like-facebook"), apperror.ErrUserNotFound},
		{"blank text", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", ProofText: "  "}, apperror.ErrValidation},
		{"media type without file", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", ProofType: model.ProofVideo}, apperror.ErrUnsupportedProof},
		{"unsupported file", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", File: &ProofFile{FieldName: "file", ContentType: "application/pdf"}}, apperror.ErrUnsupportedProof},
		{"svg file", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", File: &ProofFile{FieldName: "image", ContentType: "image/svg+xml", Data: svgProof}}, apperror.ErrUnsupportedProof},
		{"unknown proof type", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", ProofType: "pdf", ProofText: "x"}, apperror.ErrValidation},
		{"proof type disagrees with file", user.ID, &SubmitClaimRequest{TaskID: "like-facebook", ProofType: model.ProofVideo, File: &ProofFile{FieldName: "file", ContentType: "image/png", Data: pngProof}}, apperror.ErrUnsupportedProof},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.SubmitClaim(ctx, tc.userID, tc.req)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUpdateClaimStatus_ApprovalCreditsLedger(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	admin := e.admin(t)
	user := e.user(t, "u@example.com", "")

	claim, err := svc.SubmitClaim(ctx, user.ID, textClaim("google-review"))
	require.NoError(t, err)

	res := approve(t, svc, claim.ID, admin.ID)
	assert.Equal(t, model.ClaimApproved, res.Claim.Status)
	require.NotNil(t, res.Claim.ApprovedAt)
	assert.Equal(t, admin.ID, *res.Claim.ApprovedByID)
	assert.Nil(t, res.Bonus)
	assert.Equal(t, 10, e.balanceOf(t, user.ID))

	// idempotent retry
	again := approve(t, svc, claim.ID, admin.ID)
	assert.Equal(t, model.ClaimApproved, again.Claim.Status)
	assert.Equal(t, 10, e.balanceOf(t, user.ID))

	var adjustments []model.PointsAdjustment
	require.NoError(t, e.db.Where("user_id = ?", user.ID).Find(&adjustments).Error)
	require.Len(t, adjustments, 1)
	assert.Equal(t, 0, adjustments[0].PreviousBalance)
	assert.Equal(t, 10, adjustments[0].NewBalance)
	require.NotNil(t, adjustments[0].RewardClaimID)
	assert.Equal(t, claim.ID, *adjustments[0].RewardClaimID)

	_, err = svc.UpdateClaimStatus(ctx, claim.ID, &ReviewClaimRequest{Status: model.ClaimRejected}, admin.ID)
	assert.ErrorIs(t, err, apperror.ErrClaimAlreadyReviewed)
}

func TestUpdateClaimStatus_RejectionHasNoBalanceEffect(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	admin := e.admin(t)
	user := e.user(t, "u@example.com", "")

	claim, err := svc.SubmitClaim(ctx, user.ID, textClaim("google-review"))
	require.NoError(t, err)

	res, err := svc.UpdateClaimStatus(ctx, claim.ID, &ReviewClaimRequest{Status: model.ClaimRejected, Notes: "blurry"}, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimRejected, res.Claim.Status)
	assert.NotNil(t, res.Claim.RejectedAt)
	assert.Equal(t, "blurry", res.Claim.AdminNotes)
	assert.Zero(t, e.balanceOf(t, user.ID))
}

func TestUpdateClaimStatus_Errors(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	admin := e.admin(t)

	_, err := svc.UpdateClaimStatus(ctx, uuid.New(), &ReviewClaimRequest{Status: model.ClaimApproved}, admin.ID)
	assert.ErrorIs(t, err, apperror.ErrClaimNotFound)

	_, err = svc.UpdateClaimStatus(ctx, uuid.New(), &ReviewClaimRequest{Status: model.ClaimPending}, admin.ID)
	assert.ErrorIs(t, err, apperror.ErrInvalidClaimStatus)
}

func TestCompletionBonus_GrantedExactlyOnce(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	admin := e.admin(t)
	user := e.user(t, "u@example.com", "")

	required := []string{"follow-instagram", "like-facebook", "google-review", "share-story"}
	claims := make([]uuid.UUID, len(required))
	for i, id := range required {
		c, err := svc.SubmitClaim(ctx, user.ID, textClaim(id))
		require.NoError(t, err)
		claims[i] = c.ID
	}

	for i := 0; i < len(claims)-1; i++ {
		res := approve(t, svc, claims[i], admin.ID)
		assert.Nil(t, res.Bonus, "bonus must wait for every required task")
	}

	last := approve(t, svc, claims[len(claims)-1], admin.ID)
	require.NotNil(t, last.Bonus)
	assert.Equal(t, model.CompletionBonusTaskID, last.Bonus.TaskID)
	assert.Equal(t, model.ClaimApproved, last.Bonus.Status)
	assert.Equal(t, testBonus, last.Bonus.Amount)

	// 5 + 5 + 10 + 10 + bonus
	assert.Equal(t, 30+testBonus, e.balanceOf(t, user.ID))

	retry := approve(t, svc, claims[len(claims)-1], admin.ID)
	assert.Nil(t, retry.Bonus)

	// an optional task approved later does not pay the bonus again
	extra, err := svc.SubmitClaim(ctx, user.ID, textClaim("video-testimonial"))
	require.NoError(t, err)
	res := approve(t, svc, extra.ID, admin.ID)
	assert.Nil(t, res.Bonus)

	var bonuses int64
	require.NoError(t, e.db.Model(&model.RewardClaim{}).
		Where("user_id = ? AND task_id = ?", user.ID, model.CompletionBonusTaskID).
		Count(&bonuses).Error)
	assert.Equal(t, int64(1), bonuses)
	assert.Equal(t, 30+testBonus+20, e.balanceOf(t, user.ID))

	tasks, err := svc.ListTasks(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, tasks.BonusEarned)
	assert.Equal(t, testBonus, tasks.BonusAmount)
	for _, task := range tasks.Tasks {
		require.NotNil(t, task.Status, task.ID)
		assert.Equal(t, model.ClaimApproved, *task.Status)
	}
}

// racingClaims lets a rival claim for taskID land between the service's
// existence check and its insert, the way a concurrent request would.
type racingClaims struct {
	repository.RewardClaimRepository
	race *claimRace
}

type claimRace struct {
	taskID string
	rival  model.RewardClaim
	done   bool
}

func (r *racingClaims) WithTx(tx *gorm.DB) repository.RewardClaimRepository {
	return &racingClaims{RewardClaimRepository: r.RewardClaimRepository.WithTx(tx), race: r.race}
}

func (r *racingClaims) FindByUserAndTask(ctx context.Context, userID uuid.UUID, taskID string) (*model.RewardClaim, error) {
	if taskID != r.race.taskID || r.race.done {
		return r.RewardClaimRepository.FindByUserAndTask(ctx, userID, taskID)
	}
	r.race.done = true
	rival := r.race.rival
	rival.UserID = userID
	rival.TaskID = taskID
	if err := r.RewardClaimRepository.Create(ctx, &rival); err != nil {
		return nil, err
	}
	return nil, gorm.ErrRecordNotFound
}

// keyedStore remembers the keys written through it.
type keyedStore struct {
	storage.ProofStore
	keys []string
}

func (s *keyedStore) Store(ctx context.Context, key, contentType string, data []byte) (string, error) {
	s.keys = append(s.keys, key)
	return s.ProofStore.Store(ctx, key, contentType, data)
}

func countClaims(t *testing.T, e *testEnv, userID uuid.UUID, taskID string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&model.RewardClaim{}).
		Where("user_id = ? AND task_id = ?", userID, taskID).
		Count(&n).Error)
	return n
}

func TestSubmitClaim_ConcurrentDuplicate(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	user := e.user(t, "u@example.com", "")

	catalog, err := LoadTaskCatalog(ctx, e.tasks, testBonus)
	require.NoError(t, err)
	claims := &racingClaims{RewardClaimRepository: e.claims, race: &claimRace{
		taskID: "google-review",
		rival:  model.RewardClaim{TaskTitle: "Leave a Google review", Amount: 10, Status: model.ClaimPending, ProofType: model.ProofText, ProofText: "first"},
	}}
	proofs := &keyedStore{ProofStore: e.proofs}
	svc := NewRewardService(e.db, catalog, claims, e.users, e.points, proofs, e.events)

	_, err = svc.SubmitClaim(ctx, user.ID, &SubmitClaimRequest{
		TaskID: "google-review",
		File:   &ProofFile{FieldName: "image", Filename: "review.png", ContentType: "image/png", Data: pngProof},
	})
	assert.ErrorIs(t, err, apperror.ErrAlreadyClaimed)
	assert.Equal(t, int64(1), countClaims(t, e, user.ID, "google-review"))
	assert.Empty(t, e.events.Types())

	// the upload of the losing request is not left behind
	require.Len(t, proofs.keys, 1)
	_, _, err = e.proofs.Open(ctx, proofs.keys[0])
	assert.True(t, storage.IsNotExist(err))
}

func TestCompletionBonus_ConcurrentGrant(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin := e.admin(t)
	user := e.user(t, "u@example.com", "")

	catalog, err := LoadTaskCatalog(ctx, e.tasks, testBonus)
	require.NoError(t, err)
	claims := &racingClaims{RewardClaimRepository: e.claims, race: &claimRace{
		taskID: model.CompletionBonusTaskID,
		rival:  model.RewardClaim{TaskTitle: "Completion bonus", Amount: testBonus, Status: model.ClaimApproved, ProofType: model.ProofText, ProofText: "granted elsewhere"},
	}}
	svc := NewRewardService(e.db, catalog, claims, e.users, e.points, e.proofs, e.events)

	var last *ReviewResult
	for _, id := range []string{"follow-instagram", "like-facebook", "google-review", "share-story"} {
		c, err := svc.SubmitClaim(ctx, user.ID, textClaim(id))
		require.NoError(t, err)
		last = approve(t, svc, c.ID, admin.ID)
	}

	require.True(t, claims.race.done)
	assert.Nil(t, last.Bonus)
	assert.Equal(t, model.ClaimApproved, last.Claim.Status)
	assert.Equal(t, int64(1), countClaims(t, e, user.ID, model.CompletionBonusTaskID))
	// only the task amounts, the rival grant credited nothing here
	assert.Equal(t, 30, e.balanceOf(t, user.ID))

	var adjustments int64
	require.NoError(t, e.db.Model(&model.PointsAdjustment{}).Where("user_id = ?", user.ID).Count(&adjustments).Error)
	assert.Equal(t, int64(4), adjustments)
}

func TestGetAllClaims(t *testing.T) {
	e := newTestEnv(t)
	svc := newRewardService(t, e)
	ctx := context.Background()
	admin := e.admin(t)
	alice := e.user(t, "alice@example.com", "")
	bob := e.user(t, "bob@example.com", "")

	c1, err := svc.SubmitClaim(ctx, alice.ID, textClaim("google-review"))
	require.NoError(t, err)
	_, err = svc.SubmitClaim(ctx, alice.ID, textClaim("share-story"))
	require.NoError(t, err)
	_, err = svc.SubmitClaim(ctx, bob.ID, textClaim("share-story"))
	require.NoError(t, err)
	approve(t, svc, c1.ID, admin.ID)

	pending := model.ClaimPending
	list, err := svc.GetAllClaims(ctx, ClaimListFilter{Status: &pending})
	require.NoError(t, err)
	assert.Equal(t, int64(2), list.Meta.Total)

	mine, err := svc.GetUserClaims(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	got, err := svc.GetClaim(ctx, c1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.ClaimApproved, got.Status)

	_, err = svc.GetClaim(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrClaimNotFound)
}

func TestTaskCatalog(t *testing.T) {
	catalog := NewTaskCatalog([]model.RewardTask{
		{ID: "a", Required: true},
		{ID: "b", Required: true},
		{ID: "c"},
	}, 15)

	assert.Equal(t, []string{"a", "b"}, catalog.RequiredIDs())
	assert.False(t, catalog.CompletesRequired([]string{"a", "c"}))
	assert.True(t, catalog.CompletesRequired([]string{"b", "a"}))
	assert.False(t, NewTaskCatalog(nil, 15).CompletesRequired(nil))

	tasks := catalog.Tasks()
	tasks[0].ID = "mutated"
	_, ok := catalog.Lookup("a")
	assert.True(t, ok, "callers cannot mutate the catalog")
}
