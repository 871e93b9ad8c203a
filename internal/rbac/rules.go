package rbac

// Permissions checked by route guards.
const (
	PermQuizTake        = "quiz:take"
	PermQuizAuthor      = "quiz:author"
	PermAnalyticsView   = "quiz:analytics"
	PermProgressWrite   = "progress:write"
	PermCertificateView = "certificate:view-own"
	PermCertificateMint = "certificate:regenerate"
	PermCourseManage    = "course:manage"
	PermUsersManage     = "users:manage"
	PermSessionsOwn     = "sessions:own"

	// PermAdmin is held only by roles granted "*".
	PermAdmin = "admin:*"
)

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	"STUDENT": {
		PermQuizTake,
		PermProgressWrite,
		PermCertificateView,
		PermSessionsOwn,
	},
	"ADMIN": {
		"*",
	},
}
