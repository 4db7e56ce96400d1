package store

import "time"

type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
	RoleViewer   Role = "viewer"
)

type Protocol string

const (
	ProtocolRDP Protocol = "rdp"
	ProtocolVNC Protocol = "vnc"
	ProtocolSSH Protocol = "ssh"
)

type SessionStatus string

const (
	SessionSuccess SessionStatus = "success"
	SessionFailed  SessionStatus = "failed"
	SessionTimeout SessionStatus = "timeout"
)

type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionUpdate  AuditAction = "update"
	ActionDelete  AuditAction = "delete"
	ActionConnect AuditAction = "connect"
	ActionLogin   AuditAction = "login"
	ActionLogout  AuditAction = "logout"
)

type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         Role
	IsActive     bool
	LastLogin    *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Device credential fields hold sealed ciphertext, never plaintext. The
// gateway layer decrypts them when building connection parameters.
type Device struct {
	ID              int64
	Name            string
	Description     string
	Host            string
	Port            int
	Protocol        Protocol
	Username        string
	PasswordEnc     string
	PrivateKeyEnc   string
	GuacamoleConnID string
	Status          string
	Tags            []string
	IsActive        bool
	CreatedBy       *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Group struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

type DirectGrant struct {
	UserID     int64
	DeviceID   int64
	Permission string
	GrantedAt  time.Time
}

type GroupGrant struct {
	GroupID    int64
	DeviceID   int64
	Permission string
	GrantedAt  time.Time
}

// SessionLog records one remote-access session. An entry is open while
// ConnectionEnd is nil and immutable once closed.
type SessionLog struct {
	ID              int64
	UserID          int64
	DeviceID        int64
	ConnectionStart time.Time
	ConnectionEnd   *time.Time
	Duration        *int
	Status          SessionStatus
	IPAddress       string
	UserAgent       string
}

// AuditLog is append-only. UserID is nil when no authenticated context was
// present at record time.
type AuditLog struct {
	ID           int64
	UserID       *int64
	Action       AuditAction
	ResourceType string
	ResourceID   int64
	Details      map[string]any
	IPAddress    string
	CreatedAt    time.Time
}
