package domain

// GuestName is the session identity used when nobody is logged in by name.
const GuestName = "Guest"

// CurrentUser is the singleton session identity record.
type CurrentUser struct {
	Name string `json:"name"`
}

// Guest returns the guest session identity.
func Guest() CurrentUser {
	return CurrentUser{Name: GuestName}
}
