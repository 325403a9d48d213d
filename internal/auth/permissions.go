package auth

import "github.com/alisary1394-u/qelwa-healthy-city-sub001/internal/models"

type Permission string

const (
	PermEntitiesRead   Permission = "entities:read"
	PermEntitiesWrite  Permission = "entities:write"
	PermMembersManage  Permission = "members:manage"
	PermSettingsManage Permission = "settings:manage"
	PermBackupsManage  Permission = "backups:manage"
	PermSeedManage     Permission = "seed:manage"
	PermReportsRead    Permission = "reports:read"
	PermEvidenceReview Permission = "evidence:review"
)

var rolePermissions = map[string][]Permission{
	models.RoleGovernor: {
		PermEntitiesRead, PermEntitiesWrite, PermMembersManage, PermSettingsManage,
		PermBackupsManage, PermSeedManage, PermReportsRead, PermEvidenceReview,
	},
	models.RoleCoordinator: {
		PermEntitiesRead, PermEntitiesWrite, PermMembersManage, PermReportsRead, PermEvidenceReview,
	},
	models.RoleCommitteeHead: {
		PermEntitiesRead, PermEntitiesWrite, PermReportsRead, PermEvidenceReview,
	},
	models.RoleMember: {
		PermEntitiesRead, PermEntitiesWrite, PermReportsRead,
	},
	models.RoleVolunteer: {
		PermEntitiesRead,
	},
}

// Can reports whether role grants perm. Unknown roles grant nothing.
func Can(role string, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// Permissions lists what role grants.
func Permissions(role string) []Permission {
	return append([]Permission(nil), rolePermissions[role]...)
}

// roleRank orders roles from the governor down. Unknown roles rank zero.
var roleRank = map[string]int{
	models.RoleGovernor:      5,
	models.RoleCoordinator:   4,
	models.RoleCommitteeHead: 3,
	models.RoleMember:        2,
	models.RoleVolunteer:     1,
}

// CanAssignRole reports whether actor may grant role to a member, or manage a
// member who already holds it. The governor may assign any role; everyone else
// only roles strictly below their own.
func CanAssignRole(actor, role string) bool {
	if actor == models.RoleGovernor {
		return true
	}
	a, target := roleRank[actor], roleRank[role]
	return a > 0 && target > 0 && target < a
}
