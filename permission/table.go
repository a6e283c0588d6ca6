package permission

// Permission is a fine-grained resource:action capability.
type Permission string

const (
	ProfileRead   Permission = "profile:read"
	ProfileUpdate Permission = "profile:update"

	AssessmentsRead   Permission = "assessments:read"
	AssessmentsCreate Permission = "assessments:create"
	AssessmentsUpdate Permission = "assessments:update"
	AssessmentsDelete Permission = "assessments:delete"

	InterventionsRead   Permission = "interventions:read"
	InterventionsCreate Permission = "interventions:create"
	InterventionsUpdate Permission = "interventions:update"
	InterventionsDelete Permission = "interventions:delete"

	FollowupsRead   Permission = "followups:read"
	FollowupsCreate Permission = "followups:create"
	FollowupsUpdate Permission = "followups:update"

	UsersRead    Permission = "users:read"
	UsersCreate  Permission = "users:create"
	UsersUpdate  Permission = "users:update"
	UsersDelete  Permission = "users:delete"
	UsersApprove Permission = "users:approve"

	LocationsRead   Permission = "locations:read"
	LocationsManage Permission = "locations:manage"

	ReportsRead   Permission = "reports:read"
	ReportsExport Permission = "reports:export"

	AuditRead Permission = "audit:read"
)

// allPermissions fixes bit assignment order.
var allPermissions = []Permission{
	ProfileRead, ProfileUpdate,
	AssessmentsRead, AssessmentsCreate, AssessmentsUpdate, AssessmentsDelete,
	InterventionsRead, InterventionsCreate, InterventionsUpdate, InterventionsDelete,
	FollowupsRead, FollowupsCreate, FollowupsUpdate,
	UsersRead, UsersCreate, UsersUpdate, UsersDelete, UsersApprove,
	LocationsRead, LocationsManage,
	ReportsRead, ReportsExport,
	AuditRead,
}

var careReader = []Permission{
	ProfileRead, ProfileUpdate,
	AssessmentsRead, InterventionsRead, FollowupsRead,
}

// rolePermissions is the single source of truth for the authorization model.
var rolePermissions = map[Role][]Permission{
	RoleElderly: careReader,
	RoleFamily:  careReader,
	RoleVolunteer: append(append([]Permission{}, careReader...),
		AssessmentsCreate,
		FollowupsCreate, FollowupsUpdate,
		LocationsRead,
	),
	RoleProfessional: append(append([]Permission{}, careReader...),
		AssessmentsCreate, AssessmentsUpdate,
		InterventionsCreate, InterventionsUpdate,
		FollowupsCreate, FollowupsUpdate,
		UsersRead,
		LocationsRead,
		ReportsRead, ReportsExport,
	),
	RoleSuperAdmin: allPermissions,
}

// Table is the immutable role → permission mask lookup.
type Table struct {
	registry *Registry
	masks    map[Role]Mask64
}

var defaultTable = mustBuildTable()

func mustBuildTable() *Table {
	t, err := buildTable(allPermissions, rolePermissions)
	if err != nil {
		panic("permission: " + err.Error())
	}
	return t
}

func buildTable(perms []Permission, roles map[Role][]Permission) (*Table, error) {
	registry := NewRegistry()
	for _, p := range perms {
		if _, err := registry.Register(p); err != nil {
			return nil, err
		}
	}
	registry.Freeze()

	masks := make(map[Role]Mask64, len(roles))
	for role, list := range roles {
		mask, err := registry.MaskFor(list)
		if err != nil {
			return nil, err
		}
		masks[role] = mask
	}

	return &Table{registry: registry, masks: masks}, nil
}

// Default returns the process-wide permission table.
func Default() *Table {
	return defaultTable
}

// Has reports whether role is granted perm.
func (t *Table) Has(role Role, perm Permission) bool {
	mask, ok := t.masks[role]
	if !ok {
		return false
	}
	bit, ok := t.registry.Bit(perm)
	if !ok {
		return false
	}
	return mask.Has(bit)
}

// HasAny reports whether role is granted at least one of perms.
func (t *Table) HasAny(role Role, perms []Permission) bool {
	for _, p := range perms {
		if t.Has(role, p) {
			return true
		}
	}
	return false
}

// PermissionsFor lists the permissions granted to role in registry order.
// Returns nil for unknown roles.
func (t *Table) PermissionsFor(role Role) []Permission {
	mask, ok := t.masks[role]
	if !ok {
		return nil
	}
	out := make([]Permission, 0, t.registry.Count())
	for bit := 0; bit < t.registry.Count(); bit++ {
		if !mask.Has(bit) {
			continue
		}
		if name, ok := t.registry.Name(bit); ok {
			out = append(out, name)
		}
	}
	return out
}

// HasPermission reports whether role is granted perm by the default table.
func HasPermission(role Role, perm Permission) bool {
	return defaultTable.Has(role, perm)
}

// PermissionsForRole returns all permissions the default table grants to role.
func PermissionsForRole(role Role) []Permission {
	return defaultTable.PermissionsFor(role)
}

// All returns every known permission.
func All() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}
