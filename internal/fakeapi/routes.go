package fakeapi

const apiPrefix = "/api"

// Routes as passed to Hits and Fail
const (
	RouteLogin              = "POST /auth/login"
	RouteRegister           = "POST /auth/register"
	RouteVerifyEmail        = "POST /auth/verify-email"
	RouteResendVerification = "POST /auth/resend-verification"
	RouteForgotPassword     = "POST /auth/forgot-password"
	RouteResetPassword      = "POST /auth/reset-password"
	RouteRefreshToken       = "POST /auth/refresh-token"
	RouteAutoRefresh        = "POST /auth/auto-refresh"
	RouteLogout             = "POST /auth/logout"
	RouteValidateToken      = "GET /auth/validate-token"
	RouteMe                 = "GET /users/me"

	RouteCourses       = "GET /courses"
	RouteCourse        = "GET /courses/{id}"
	RouteCoursesWeek   = "GET /courses/week"
	RouteBook          = "POST /courses/{id}/book"
	RouteCancel        = "DELETE /courses/{id}/cancel"
	RouteBookingStatus = "GET /users/booking-status/{id}"
	RouteUserBookings  = "GET /users/bookings"

	RouteUsers             = "GET /users"
	RouteCreateUser        = "POST /users"
	RouteDeleteUser        = "DELETE /users/{id}"
	RouteUsersByRole       = "GET /users/role/{role}"
	RouteUpdateRole        = "PUT /users/{id}/role"
	RouteUsersByDanceType  = "GET /users/dance-type/{danceType}"
	RouteUpdateProfile     = "PATCH /users/profile"
	RouteChangePassword    = "PATCH /users/password"
	RouteLeaders           = "GET /leaders"
	RouteLeaderByDanceType = "GET /leaders/{danceType}"

	RouteAdminCourses      = "GET /admin/courses"
	RouteAdminCreateCourse = "POST /admin/courses"
	RouteAdminUpdateCourse = "PUT /admin/courses/{id}"
	RouteAdminDeleteCourse = "DELETE /admin/courses/{id}"
	RouteAdminAssignments  = "GET /admin/courses/assignments"
	RouteAdminAssignCourse = "PUT /admin/courses/{id}/assign"
)

func (s *Server) initRoutes() {
	// AUTH
	s.RegisterRouteFunc(RouteLogin, s.LoginHandler())
	s.RegisterRouteFunc(RouteRegister, s.RegisterHandler())
	s.RegisterRouteFunc(RouteVerifyEmail, s.VerifyEmailHandler())
	s.RegisterRouteFunc(RouteResendVerification, s.ResendVerificationHandler())
	s.RegisterRouteFunc(RouteForgotPassword, s.ForgotPasswordHandler())
	s.RegisterRouteFunc(RouteResetPassword, s.ResetPasswordHandler())
	s.RegisterRouteFunc(RouteRefreshToken, ChainMiddleware(s.RefreshTokenHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteAutoRefresh, ChainMiddleware(s.AutoRefreshHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteLogout, ChainMiddleware(s.LogoutHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteValidateToken, ChainMiddleware(s.ValidateTokenHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteMe, ChainMiddleware(s.MeHandler(), s.RequireAuth))

	// COURSES AND BOOKINGS
	s.RegisterRouteFunc(RouteCourses, s.CoursesHandler())
	s.RegisterRouteFunc(RouteCourse, s.CourseHandler())
	s.RegisterRouteFunc(RouteCoursesWeek, s.CoursesWeekHandler())
	s.RegisterRouteFunc(RouteBook, ChainMiddleware(s.BookHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteCancel, ChainMiddleware(s.CancelHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteBookingStatus, ChainMiddleware(s.BookingStatusHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteUserBookings, ChainMiddleware(s.UserBookingsHandler(), s.RequireAuth))

	// USER ADMINISTRATION
	s.RegisterRouteFunc(RouteUsers, ChainMiddleware(s.UsersHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteCreateUser, ChainMiddleware(s.CreateUserHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteDeleteUser, ChainMiddleware(s.DeleteUserHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteUsersByRole, ChainMiddleware(s.UsersByRoleHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteUpdateRole, ChainMiddleware(s.UpdateRoleHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteUsersByDanceType, ChainMiddleware(s.UsersByDanceTypeHandler(), s.RequireAuth, s.RequireRole("admin", "leader")))
	s.RegisterRouteFunc(RouteUpdateProfile, ChainMiddleware(s.UpdateProfileHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteChangePassword, ChainMiddleware(s.ChangePasswordHandler(), s.RequireAuth))
	s.RegisterRouteFunc(RouteLeaders, s.LeadersHandler())
	s.RegisterRouteFunc(RouteLeaderByDanceType, s.LeaderByDanceTypeHandler())

	// COURSE ADMINISTRATION
	s.RegisterRouteFunc(RouteAdminCourses, ChainMiddleware(s.AdminCoursesHandler(), s.RequireAuth, s.RequireRole("admin", "leader")))
	s.RegisterRouteFunc(RouteAdminCreateCourse, ChainMiddleware(s.AdminCreateCourseHandler(), s.RequireAuth, s.RequireRole("admin", "leader")))
	s.RegisterRouteFunc(RouteAdminUpdateCourse, ChainMiddleware(s.AdminUpdateCourseHandler(), s.RequireAuth, s.RequireRole("admin", "leader")))
	s.RegisterRouteFunc(RouteAdminDeleteCourse, ChainMiddleware(s.AdminDeleteCourseHandler(), s.RequireAuth, s.RequireRole("admin", "leader")))
	s.RegisterRouteFunc(RouteAdminAssignments, ChainMiddleware(s.AdminAssignmentsHandler(), s.RequireAuth, s.RequireRole("admin")))
	s.RegisterRouteFunc(RouteAdminAssignCourse, ChainMiddleware(s.AdminAssignCourseHandler(), s.RequireAuth, s.RequireRole("admin")))
}
