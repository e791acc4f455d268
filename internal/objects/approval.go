package objects

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovalStatus is the lifecycle state of an approval request.
type ApprovalStatus string

const (
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
	ApprovalStatusCanceled ApprovalStatus = "canceled"
)

// IsDecided reports whether the request reached a terminal decision.
func (s ApprovalStatus) IsDecided() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// Decision is the verdict applied to a pending approval request.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

type ApprovalInfo struct {
	GUID          string          `json:"guid"`
	Title         string          `json:"title"`
	Kind          string          `json:"kind"`
	Status        ApprovalStatus  `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	RequesterGUID string          `json:"requesterGuid"`
	DecidedBy     string          `json:"decidedBy,omitempty"`
	Note          string          `json:"note,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type CreateApprovalInput struct {
	Title  string          `json:"title" binding:"required"`
	Kind   string          `json:"kind"`
	Amount decimal.Decimal `json:"amount"`
}

type DecideApprovalInput struct {
	Decision Decision `json:"decision" binding:"required"`
	Note     string   `json:"note"`
}

type ApprovalList struct {
	Items      []ApprovalInfo `json:"items"`
	NextCursor string         `json:"nextCursor,omitempty"`
}

// ApprovalStats are calendar-aligned decision counts for the dashboard.
type ApprovalStats struct {
	PendingTotal   int `json:"pendingTotal"`
	DecidedToday   int `json:"decidedToday"`
	DecidedThisWk  int `json:"decidedThisWeek"`
	DecidedThisMon int `json:"decidedThisMonth"`
}

type GrantInfo struct {
	SubjectGUID string `json:"subjectGuid"`
	Relation    string `json:"relation"`
	ObjectGUID  string `json:"objectGuid"`
}
