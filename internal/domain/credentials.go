package domain

// Credentials is a principal's login or registration input.
// The password is write-only: it is sent once and never stored.
type Credentials struct {
	StoreID  string
	Password string
}

// String hides the password from logs and fmt verbs
func (c Credentials) String() string {
	return "Credentials{StoreID: " + c.StoreID + ", Password: [redacted]}"
}

// GoString hides the password from %#v
func (c Credentials) GoString() string {
	return c.String()
}
