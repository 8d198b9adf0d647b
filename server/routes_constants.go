package server

import "github.com/jrsteele09/go-waste-portal/auth"

const (
	RouteRoot = auth.RouteRoot

	// Pengelola onboarding
	RoutePengelolaSignIn          = auth.RoutePengelolaSignIn
	RoutePengelolaVerifyOTP       = auth.RoutePengelolaVerifyOTP
	RoutePengelolaPIN             = auth.RoutePengelolaPIN
	RoutePengelolaCreatePIN       = auth.RoutePengelolaCreatePIN
	RoutePengelolaCompleteProfile = auth.RoutePengelolaCompleteProfile
	RoutePengelolaWaitingApproval = auth.RoutePengelolaWaitingApproval
	RoutePengelolaDashboard       = auth.RoutePengelolaDashboard

	// Administrator
	RouteAdminLogin         = auth.RouteAdminLogin
	RouteAdminVerifyOTP     = auth.RouteAdminVerifyOTP
	RouteAdminDashboard     = auth.RouteAdminDashboard
	RouteAdminApprovals     = "/admin/approvals"
	RouteAdminApprovalsItem = "/admin/approvals/{id}/{action}"

	RouteAuthLogout = "/auth/logout"

	// Operations
	RouteHealth  = "/healthz"
	RouteMetrics = "/metrics"

	// Static assets
	RouteStaticCSS = "/css/{file}"
	RouteFavicon   = "/favicon.svg"
)
