package models

// Viewer is the authenticated caller. A zero Viewer is an anonymous
// candidate.
type Viewer struct {
	UserID string
	Role   Role
}

func (v Viewer) IsAnonymous() bool {
	return v.UserID == ""
}

func (v Viewer) IsRecruiter() bool {
	return v.Role == RoleRecruiter && v.UserID != ""
}

// Owns reports whether v is the recruiter who owns interview.
func (v Viewer) Owns(interview *Interview) bool {
	return v.IsRecruiter() && interview != nil && interview.RecruiterID == v.UserID
}
