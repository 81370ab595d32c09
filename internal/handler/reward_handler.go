package handler

import (
	"io"
	"mime/multipart"
	"strings"

	"go-loyalty-store/internal/apperror"
	"go-loyalty-store/internal/model"
	"go-loyalty-store/internal/service"

	"github.com/gofiber/fiber/v2"
)

// proofFields are the multipart fields a proof file may arrive in, in lookup order.
var proofFields = []string{"file", "image", "audio", "video"}

type RewardHandler struct {
	rewardService service.RewardService
}

func NewRewardHandler(rewardService service.RewardService) *RewardHandler {
	return &RewardHandler{rewardService: rewardService}
}

// GetTasks lists reward tasks with the caller's claim status
// GET /api/rewards/tasks
func (h *RewardHandler) GetTasks(c *fiber.Ctx) error {
	tasks, err := h.rewardService.ListTasks(c.UserContext(), getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", tasks)
}

// SubmitClaim accepts JSON for text proof or multipart for file proof
// POST /api/rewards/claim
func (h *RewardHandler) SubmitClaim(c *fiber.Ctx) error {
	req, err := parseClaimRequest(c)
	if err != nil {
		return fail(c, err)
	}

	claim, err := h.rewardService.SubmitClaim(c.UserContext(), getUserID(c), req)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusCreated, "Reward claim submitted, awaiting review", claim)
}

func parseClaimRequest(c *fiber.Ctx) (*service.SubmitClaimRequest, error) {
	req := &service.SubmitClaimRequest{}
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if err := c.BodyParser(req); err != nil {
			return nil, badBody()
		}
		return req, nil
	}

	form, err := c.MultipartForm()
	if err != nil {
		return nil, badBody()
	}
	req.TaskID = firstValue(form, "task_id")
	req.ProofType = model.ProofType(firstValue(form, "proof_type"))
	req.ProofText = firstValue(form, "proof_text")

	for _, field := range proofFields {
		files := form.File[field]
		if len(files) == 0 {
			continue
		}
		file, err := readProof(field, files[0])
		if err != nil {
			return nil, err
		}
		req.File = file
		break
	}
	return req, nil
}

func firstValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func readProof(field string, fh *multipart.FileHeader) (*service.ProofFile, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, apperror.ErrValidation.WithDetails("unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, apperror.ErrValidation.WithDetails("unreadable upload")
	}
	return &service.ProofFile{
		FieldName:   field,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

// GetMyClaims
// GET /api/rewards/my-claims
func (h *RewardHandler) GetMyClaims(c *fiber.Ctx) error {
	claims, err := h.rewardService.GetUserClaims(c.UserContext(), getUserID(c))
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", claims)
}

// GetAllClaims
// GET /api/rewards/admin/requests?status=&user_id=&task_id=&page=&limit=
func (h *RewardHandler) GetAllClaims(c *fiber.Ctx) error {
	userID, err := uuidQuery(c, "user_id")
	if err != nil {
		return fail(c, err)
	}

	filter := service.ClaimListFilter{
		UserID: userID,
		TaskID: c.Query("task_id"),
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 20),
	}
	if raw := c.Query("status"); raw != "" && raw != "all" {
		status := model.ClaimStatus(raw)
		filter.Status = &status
	}

	list, err := h.rewardService.GetAllClaims(c.UserContext(), filter)
	if err != nil {
		return fail(c, err)
	}
	return okPage(c, "", list.Items, list.Meta)
}

// GetClaim
// GET /api/rewards/admin/requests/:id
func (h *RewardHandler) GetClaim(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	claim, err := h.rewardService.GetClaim(c.UserContext(), id)
	if err != nil {
		return fail(c, err)
	}
	return ok(c, fiber.StatusOK, "", claim)
}

// ReviewClaim approves or rejects a claim
// PUT /api/rewards/admin/requests/:id
func (h *RewardHandler) ReviewClaim(c *fiber.Ctx) error {
	id, err := uuidParam(c, "id")
	if err != nil {
		return fail(c, err)
	}

	var req service.ReviewClaimRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, badBody())
	}

	result, err := h.rewardService.UpdateClaimStatus(c.UserContext(), id, &req, getUserID(c))
	if err != nil {
		return fail(c, err)
	}

	message := "Reward claim " + string(result.Claim.Status)
	if result.Bonus != nil {
		message += ", completion bonus granted"
	}
	return ok(c, fiber.StatusOK, message, result)
}
