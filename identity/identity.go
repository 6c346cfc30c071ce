package identity

// Role represents a platform role
type Role string

const (
	RoleAdmin  Role = "ADMIN"  // Can manage users, sessions and announcements
	RoleMentor Role = "MENTOR" // Runs mentoring sessions, requires admin approval
	RoleMentee Role = "MENTEE" // Attends mentoring sessions, requires email verification
)

// Status represents an account lifecycle state
type Status string

const (
	StatusActive          Status = "ACTIVE"
	StatusInactive        Status = "INACTIVE"
	StatusPendingApproval Status = "PENDING_APPROVAL"
)

// User is the authenticated identity snapshot held by the client. It is
// replaced wholesale on profile update or re-authentication, never merged.
type User struct {
	ID       string  `json:"id,omitempty"`     // Unique identifier for the user
	Name     string  `json:"name,omitempty"`   // Display name
	Email    string  `json:"email,omitempty"`  // User's email address
	Role     Role    `json:"role,omitempty"`   // ADMIN | MENTOR | MENTEE
	Status   Status  `json:"status,omitempty"` // Account lifecycle state
	Verified bool    `json:"verified"`         // Has the user verified their email
	Avatar   *string `json:"avatar,omitempty"` // Optional avatar reference
}

// PendingMentor reports whether the user is a mentor awaiting admin approval
func (u *User) PendingMentor() bool {
	return u.Role == RoleMentor && u.Status == StatusPendingApproval
}

// UnverifiedMentee reports whether the user is a mentee who has not verified
// their email address
func (u *User) UnverifiedMentee() bool {
	return u.Role == RoleMentee && !u.Verified
}

// ChannelEligible reports whether the user may hold a real-time channel.
// Pending mentors are locked out of the platform and never connect.
func (u *User) ChannelEligible() bool {
	if u == nil {
		return false
	}
	return !u.PendingMentor()
}

// ValidRole reports whether r is one of the platform roles
func ValidRole(r Role) bool {
	switch r {
	case RoleAdmin, RoleMentor, RoleMentee:
		return true
	}
	return false
}
