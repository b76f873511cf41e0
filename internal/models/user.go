package models

// StatusDeleted marks a soft-deleted user row. Deleted users cannot receive
// transfers and do not collect inviter fees.
const StatusDeleted = 6

// User is the minimal collaborator row the core needs: recipient existence
// checks and inviter resolution. Profile data lives outside this service.
type User struct {
	UID      string `json:"uid" db:"uid"`
	Username string `json:"username" db:"username"`
	Status   int    `json:"status" db:"status"`
	Invited  string `json:"invited,omitempty" db:"invited"` // inviter uid, empty when none
}
