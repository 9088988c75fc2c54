package capture

// SessionProvider exposes the current authenticated user, if any.
type SessionProvider interface {
	IsAuthorized() bool
	UserID() string
	Email() string
	Login() string
}

// StaticSession is a SessionProvider with fixed values. The zero value is
// an anonymous session.
type StaticSession struct {
	ID        string
	UserEmail string
	UserLogin string
}

func (s StaticSession) IsAuthorized() bool { return s.ID != "" }
func (s StaticSession) UserID() string     { return s.ID }
func (s StaticSession) Email() string      { return s.UserEmail }
func (s StaticSession) Login() string      { return s.UserLogin }

func userFromSession(s SessionProvider) User {
	return User{
		ID:       s.UserID(),
		Email:    s.Email(),
		Username: s.Login(),
	}
}
