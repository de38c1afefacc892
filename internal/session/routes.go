package session

import "gitlab.ozon.dev/pupkingeorgij/lockerclient/internal/model"

const (
	RouteLogin   = "/(auth)/login"
	RouteUser    = "/user/(tabs)"
	RoutePartner = "/partner/(tabs)"
)

// InitialRoute maps a session to the first screen a client should show.
//
// ADMIN has no dedicated surface yet and lands on the user tabs together with
// USER and STAFF.
func InitialRoute(s model.Session) string {
	if !s.Authenticated() {
		return RouteLogin
	}
	switch s.Role() {
	case model.RolePartner:
		return RoutePartner
	default:
		return RouteUser
	}
}
