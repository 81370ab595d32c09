package model

import (
	"time"

	"github.com/google/uuid"
)

// CompletionBonusTaskID identifies the synthetic claim granted once every
// required task has been approved.
const CompletionBonusTaskID = "completion-bonus"

// RewardTask is an admin-manageable task a user can claim a reward for.
type RewardTask struct {
	ID          string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	Title       string    `gorm:"type:varchar(255);not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	Amount      int       `gorm:"not null" json:"amount"`
	Required    bool      `gorm:"not null;default:false" json:"required"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DefaultRewardTasks seeds an empty task table.
var DefaultRewardTasks = []RewardTask{
	{ID: "follow-instagram", Title: "Follow us on Instagram", Amount: 5, Required: true},
	{ID: "like-facebook", Title: "Like our Facebook page", Amount: 5, Required: true},
	{ID: "google-review", Title: "Leave a Google review", Amount: 10, Required: true},
	{ID: "share-story", Title: "Share a story featuring the store", Amount: 10, Required: true},
	{ID: "video-testimonial", Title: "Record a video testimonial", Amount: 20},
}

type ClaimStatus string

const (
	ClaimPending  ClaimStatus = "pending"
	ClaimApproved ClaimStatus = "approved"
	ClaimRejected ClaimStatus = "rejected"
)

type ProofType string

const (
	ProofText  ProofType = "text"
	ProofImage ProofType = "image"
	ProofAudio ProofType = "audio"
	ProofVideo ProofType = "video"
)

func (p ProofType) Valid() bool {
	switch p {
	case ProofText, ProofImage, ProofAudio, ProofVideo:
		return true
	}
	return false
}

// RewardClaim is a user's proof submission for a task. At most one per (user, task).
type RewardClaim struct {
	BaseModel
	UserID    uuid.UUID   `gorm:"type:uuid;not null;uniqueIndex:idx_reward_claim_user_task" json:"user_id"`
	User      *User       `json:"user,omitempty"`
	TaskID    string      `gorm:"type:varchar(64);not null;uniqueIndex:idx_reward_claim_user_task" json:"task_id"`
	TaskTitle string      `gorm:"type:varchar(255)" json:"task_title"`
	Amount    int         `gorm:"not null" json:"amount"`
	Status    ClaimStatus `gorm:"type:varchar(20);not null;index;default:'pending'" json:"status"`

	ProofType     ProofType `gorm:"type:varchar(10);not null" json:"proof_type"`
	ProofText     string    `gorm:"type:text" json:"proof_text,omitempty"`
	ProofImageURL string    `gorm:"type:text" json:"proof_image_url,omitempty"`
	ProofAudioURL string    `gorm:"type:text" json:"proof_audio_url,omitempty"`
	ProofVideoURL string    `gorm:"type:text" json:"proof_video_url,omitempty"`

	AdminNotes   string     `gorm:"type:text" json:"admin_notes,omitempty"`
	ApprovedByID *uuid.UUID `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	RejectedByID *uuid.UUID `gorm:"type:uuid" json:"rejected_by,omitempty"`
	RejectedAt   *time.Time `json:"rejected_at,omitempty"`
}

// SetProofURL stores url in the slot matching kind.
func (c *RewardClaim) SetProofURL(kind ProofType, url string) {
	c.ProofType = kind
	switch kind {
	case ProofImage:
		c.ProofImageURL = url
	case ProofAudio:
		c.ProofAudioURL = url
	case ProofVideo:
		c.ProofVideoURL = url
	}
}
