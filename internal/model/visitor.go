package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type CheckInSource string

const (
	CheckInSelf  CheckInSource = "self"
	CheckInAdmin CheckInSource = "admin"
)

type Visit struct {
	Timestamp   time.Time     `json:"timestamp"`
	CheckedInBy CheckInSource `json:"checked_in_by"`
	AdminID     *uuid.UUID    `json:"admin_id,omitempty"`
}

type Visitor struct {
	BaseModel
	Phone      *string                    `gorm:"type:varchar(20);uniqueIndex" json:"phone"`
	Name       string                     `gorm:"type:varchar(255)" json:"name"`
	IsMember   bool                       `gorm:"not null;default:false" json:"is_member"`
	UserID     *uuid.UUID                 `gorm:"type:uuid;index" json:"user_id,omitempty"`
	User       *User                      `json:"user,omitempty"`
	VisitCount int                        `gorm:"not null;default:0" json:"visit_count"`
	LastVisit  *time.Time                 `json:"last_visit,omitempty"`
	Visits     datatypes.JSONSlice[Visit] `json:"visits"`
	IsArchived bool                       `gorm:"default:false;index" json:"is_archived"`
	ArchivedAt *time.Time                 `json:"archived_at,omitempty"`
}

// RecordVisit appends a visit and keeps VisitCount and LastVisit in step with it.
func (v *Visitor) RecordVisit(at time.Time, source CheckInSource, adminID *uuid.UUID) {
	v.Visits = append(v.Visits, Visit{Timestamp: at, CheckedInBy: source, AdminID: adminID})
	v.VisitCount = len(v.Visits)
	v.LastVisit = &at
}

// Promote marks the visitor as a registered member linked to user.
func (v *Visitor) Promote(user *User) {
	v.IsMember = true
	v.UserID = &user.ID
	if v.Name == "" {
		v.Name = user.FullName
	}
	if v.Phone == nil && user.Phone != "" {
		phone := user.Phone
		v.Phone = &phone
	}
}
