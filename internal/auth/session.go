package auth

import "context"

// Session answers who the current user is. Controllers take one at
// construction instead of looking the user up globally.
type Session interface {
	CurrentUser() (userID string, ok bool)
}

// StaticSession is a fixed identity. The empty value is signed out.
type StaticSession string

func (s StaticSession) CurrentUser() (string, bool) {
	return string(s), s != ""
}

// Anonymous is a session with no signed-in user.
var Anonymous Session = StaticSession("")

// FromClaims returns the session described by validated token claims.
func FromClaims(c *Claims) Session {
	if c == nil {
		return Anonymous
	}
	return StaticSession(c.UserID)
}

// FromContext returns the session of the request, Anonymous if the request
// did not pass through the session middleware.
func FromContext(ctx context.Context) Session {
	claims, _ := GetUserFromContext(ctx)
	return FromClaims(claims)
}
