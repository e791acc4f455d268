package biz

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/looplj/approvalhub/internal/authz"
	"github.com/looplj/approvalhub/internal/objects"
)

// UserStatus is the lifecycle state of a user account.
type UserStatus string

const (
	UserStatusActivated   UserStatus = "activated"
	UserStatusDeactivated UserStatus = "deactivated"
)

type User struct {
	ID         int
	GUID       string
	Email      string
	Password   string
	Name       string
	IsOwner    bool
	Status     UserStatus
	Attributes map[string]string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Identity converts the user row into the caller identity scope
// resolution works with.
func (u *User) Identity() *authz.Identity {
	return &authz.Identity{
		Type:    authz.IdentityTypeUser,
		ID:      u.ID,
		GUID:    u.GUID,
		Email:   u.Email,
		Name:    u.Name,
		IsOwner: u.IsOwner,
		Attrs:   u.Attributes,
	}
}

// APIKeyStatus is the lifecycle state of an API key.
type APIKeyStatus string

const (
	APIKeyStatusEnabled  APIKeyStatus = "enabled"
	APIKeyStatusDisabled APIKeyStatus = "disabled"
)

type APIKey struct {
	ID        int
	UserID    int
	Name      string
	Token     string
	Status    APIKeyStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	// User is the key owner, loaded separately and never cached with
	// the key row.
	User *User
}

// Identity converts the key row into the caller identity. Scope values
// come from the owning user, so the guid is the user's.
func (k *APIKey) Identity() *authz.Identity {
	ident := &authz.Identity{
		Type: authz.IdentityTypeAPIKey,
		ID:   k.ID,
	}
	if k.User != nil {
		ident.GUID = k.User.GUID
		ident.Email = k.User.Email
		ident.Name = k.User.Name
		ident.IsOwner = k.User.IsOwner
		ident.Attrs = k.User.Attributes
	}

	return ident
}

type Grant struct {
	ID          int
	SubjectGUID string
	Relation    string
	ObjectGUID  string
	CreatedAt   time.Time
}

type Approval struct {
	ID            int
	GUID          string
	RequesterGUID string
	Title         string
	Kind          string
	Amount        decimal.Decimal
	Status        objects.ApprovalStatus
	DecidedByGUID string
	DecisionNote  string
	DecidedAt     *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Info converts the row into its API representation.
func (a *Approval) Info() *objects.ApprovalInfo {
	return &objects.ApprovalInfo{
		GUID:          a.GUID,
		Title:         a.Title,
		Kind:          a.Kind,
		Status:        a.Status,
		Amount:        a.Amount,
		RequesterGUID: a.RequesterGUID,
		DecidedBy:     a.DecidedByGUID,
		Note:          a.DecisionNote,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

type Setting struct {
	ID        int
	Name      string
	Value     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func userColumns() []string {
	return []string{"id", "guid", "email", "password", "name", "is_owner", "status", "attributes", "created_at", "updated_at"}
}

func scanUser(s rowScanner) (*User, error) {
	var (
		u     User
		attrs sql.NullString
	)

	err := s.Scan(&u.ID, &u.GUID, &u.Email, &u.Password, &u.Name, &u.IsOwner, &u.Status, &attrs, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if attrs.Valid && attrs.String != "" {
		if err := json.Unmarshal([]byte(attrs.String), &u.Attributes); err != nil {
			return nil, fmt.Errorf("decode user attributes: %w", err)
		}
	}

	return &u, nil
}

func apiKeyColumns() []string {
	return []string{"id", "user_id", "name", "token", "status", "created_at", "updated_at"}
}

func scanAPIKey(s rowScanner) (*APIKey, error) {
	var k APIKey

	err := s.Scan(&k.ID, &k.UserID, &k.Name, &k.Token, &k.Status, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &k, nil
}

func approvalColumns() []string {
	return []string{"id", "guid", "requester_guid", "title", "kind", "amount", "status", "decided_by_guid", "decision_note", "decided_at", "created_at", "updated_at"}
}

func scanApproval(s rowScanner) (*Approval, error) {
	var (
		a         Approval
		decidedBy sql.NullString
		note      sql.NullString
		decidedAt sql.NullTime
	)

	err := s.Scan(&a.ID, &a.GUID, &a.RequesterGUID, &a.Title, &a.Kind, &a.Amount, &a.Status,
		&decidedBy, &note, &decidedAt, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.DecidedByGUID = decidedBy.String
	a.DecisionNote = note.String

	if decidedAt.Valid {
		t := decidedAt.Time
		a.DecidedAt = &t
	}

	return &a, nil
}

func encodeAttributes(attrs map[string]string) (any, error) {
	if len(attrs) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("encode user attributes: %w", err)
	}

	return string(data), nil
}

// ConvertUserToUserInfo converts a user row into its API representation.
func ConvertUserToUserInfo(u *User) *objects.UserInfo {
	return &objects.UserInfo{
		GUID:       u.GUID,
		Email:      u.Email,
		Name:       u.Name,
		IsOwner:    u.IsOwner,
		Status:     string(u.Status),
		Attributes: u.Attributes,
	}
}

// ConvertAPIKeyToInfo converts a key row into its API representation.
// The token itself is included only right after creation.
func ConvertAPIKeyToInfo(k *APIKey, includeKey bool) *objects.APIKeyInfo {
	info := &objects.APIKeyInfo{
		ID:        k.ID,
		Name:      k.Name,
		Status:    string(k.Status),
		CreatedAt: k.CreatedAt.Format(time.RFC3339),
	}
	if includeKey {
		info.Key = k.Token
	}

	return info
}
