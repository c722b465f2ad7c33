// Package session keeps a client's view of its authentication state
// consistent across server-rendered loads, cached state, direct API calls,
// and background renewal. The Store holds the current state and only
// changes through applied events; the Manager runs the arbitration and
// the renewal and consistency loops on top of it.
package session

import "time"

// Source records where the current session descriptor came from, in
// decreasing order of authority.
type Source string

const (
	SourceServer Source = "server"
	SourceClient Source = "client"
	SourceAPI    Source = "api"
	SourceCookie Source = "cookie"
	SourceNone   Source = "none"
)

// User is the client-side projection of an authenticated user.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      string `json:"role"`
}

// Descriptor is one resolved snapshot of the session state.
type Descriptor struct {
	User            *User
	IsAuthenticated bool
	ExpiresAt       time.Time
	Source          Source
}

// Unauthenticated is the zero-value session snapshot.
func Unauthenticated() Descriptor {
	return Descriptor{Source: SourceNone}
}
