package auth

import (
	"strings"

	"github.com/jrsteele09/go-waste-portal/sessions"
)

// Portal routes referenced by the gate.
const (
	RouteRoot = "/"

	RoutePengelolaSignIn          = "/pengelola/sign-in"
	RoutePengelolaVerifyOTP       = "/pengelola/verify-otp"
	RoutePengelolaPIN             = "/pengelola/pin"
	RoutePengelolaCreatePIN       = "/pengelola/create-pin"
	RoutePengelolaCompleteProfile = "/pengelola/complete-profile"
	RoutePengelolaWaitingApproval = "/pengelola/waiting-approval"
	RoutePengelolaDashboard       = "/pengelola/dashboard"

	RouteAdminLogin     = "/admin/login"
	RouteAdminVerifyOTP = "/admin/verify-otp"
	RouteAdminDashboard = "/admin/dashboard"
)

type statusKey struct {
	role   sessions.Role
	status sessions.RegistrationStatus
}

// onboardingRoutes maps a session's (role, status) to the page that moves it
// forward. A status with no entry satisfies any status requirement.
var onboardingRoutes = map[statusKey]string{
	{sessions.RolePengelola, sessions.StatusUncomplete}:       RoutePengelolaCompleteProfile,
	{sessions.RolePengelola, sessions.StatusAwaitingApproval}: RoutePengelolaWaitingApproval,
	{sessions.RolePengelola, sessions.StatusApproved}:         RoutePengelolaCreatePIN,
}

// secondaryGateRoutes is where a partial token of each role is completed.
var secondaryGateRoutes = map[sessions.Role]string{
	sessions.RolePengelola:     RoutePengelolaPIN,
	sessions.RoleAdministrator: RouteAdminVerifyOTP,
}

var dashboardRoutes = map[sessions.Role]string{
	sessions.RolePengelola:     RoutePengelolaDashboard,
	sessions.RoleAdministrator: RouteAdminDashboard,
}

// OnboardingRoute returns the route registered for (role, status).
func OnboardingRoute(role sessions.Role, status sessions.RegistrationStatus) (string, bool) {
	route, ok := onboardingRoutes[statusKey{role, status}]
	return route, ok
}

// SecondaryGateRoute returns the route that upgrades a partial token for role.
func SecondaryGateRoute(role sessions.Role) string {
	if route, ok := secondaryGateRoutes[role]; ok {
		return route
	}
	return RouteRoot
}

// NextRoute is where a freshly created or updated session should land.
func NextRoute(d *sessions.Data) string {
	if d.IsAnonymous() {
		return RouteRoot
	}
	if route, ok := OnboardingRoute(d.Role, d.RegistrationStatus); ok {
		return route
	}
	if !d.IsFull() {
		return SecondaryGateRoute(d.Role)
	}
	if route, ok := dashboardRoutes[d.Role]; ok {
		return route
	}
	return RouteRoot
}

// SignInRouteFor returns the sign-in page matching the area of path.
func SignInRouteFor(path string) string {
	if path == "/admin" || strings.HasPrefix(path, "/admin/") {
		return RouteAdminLogin
	}
	return RoutePengelolaSignIn
}
