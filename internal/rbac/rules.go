package rbac

const (
	PermExamTake     = "exam:take"
	PermExamViewAll  = "exam:view-all"
	PermExamReset    = "exam:reset"
	PermEventsRead   = "events:read"
	PermPolicyManage = "policy:manage"
	PermQuestionMgmt = "question:manage"
	PermSeedRun      = "seed:run"
	PermUsersManage  = "users:manage"
	PermSelfPassword = "user:change_password"
)

// RolePermissions is the default role table. Keys match users.Role values.
var RolePermissions = map[string][]string{
	"STUDENT": {
		PermExamTake,
		PermSelfPassword,
	},
	"SUPERVISOR": {
		PermExamTake,
		PermExamViewAll,
		PermExamReset,
		PermSelfPassword,
	},
	"ADMIN": {
		"*", // everything
	},
}
