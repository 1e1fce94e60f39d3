// Package authz holds the capability model for staff administration.
//
// Capabilities are named levels, each backed by a fixed role set:
//   - super-admin-only: super_admin
//   - any-admin: super_admin, center_head
//   - unit-head-or-above: any-admin plus every unit head
//
// Levels are sets, not ranks. A role outside a level's set is denied even
// if it looks "higher" by name.
package authz
