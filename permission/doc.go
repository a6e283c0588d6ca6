// Package permission holds the static role/permission model used by careAuth
// authorization checks.
//
// # Model
//
// Roles form an explicit total order ([RoleElderly] < [RoleFamily] <
// [RoleVolunteer] < [RoleProfessional] < [RoleSuperAdmin]). The ordinal is only
// consulted by [HasMinimumRole]; permission membership comes exclusively from the
// fixed role table, encoded as one [Mask64] per role over a frozen [Registry].
//
// The table is built once during package initialization and never mutated.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import careAuth, jwt, or middleware.
//   - Support per-user permission overrides.
package permission
