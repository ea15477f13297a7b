package event

import "time"

// Event types carried over the bus.
const (
	TypeUserNotice  = "user_notice"
	TypeMaintenance = "maintenance_notice"
)

// noticeTTL bounds how long a queued ping stays deliverable.
const noticeTTL = 10 * time.Minute

// UserNotice is a one-off localized ping to a single user: ban and unban
// notifications, VIP grants, game invites.
type UserNotice struct {
	*Base
	UserID int64
	Text   string
}

func NewUserNotice(userID int64, text string) *UserNotice {
	return &UserNotice{
		Base:   CreateBase(TypeUserNotice, time.Now().Add(noticeTTL)),
		UserID: userID,
		Text:   text,
	}
}

// MaintenanceNotice announces a maintenance toggle to every active user.
// Reason and Until are free text, displayed as the admins typed them.
type MaintenanceNotice struct {
	*Base
	Enabled bool
	Reason  string
	Until   string
}

func NewMaintenanceNotice(enabled bool, reason, until string) *MaintenanceNotice {
	return &MaintenanceNotice{
		Base:    CreateBase(TypeMaintenance, time.Now().Add(noticeTTL)),
		Enabled: enabled,
		Reason:  reason,
		Until:   until,
	}
}
