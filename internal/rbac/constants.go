// Copyright 2026 The PinPoint Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rbac

// -----------------------------------------------------------------------------
// Permission Names
// Every name here must exist in catalog.yaml; Parse rejects gates or
// templates that reference anything else.
// -----------------------------------------------------------------------------

const (
	PermIssueView    = "issue:view"
	PermIssueCreate  = "issue:create"
	PermIssueEdit    = "issue:edit"
	PermIssueDelete  = "issue:delete"
	PermIssueAssign  = "issue:assign"
	PermIssueComment = "issue:comment"

	// PermAttachmentCreate is required in addition to issue:create when a
	// report carries attachments, including anonymous reports.
	PermAttachmentCreate = "attachment:create"

	PermMachineView   = "machine:view"
	PermMachineCreate = "machine:create"
	PermMachineEdit   = "machine:edit"
	PermMachineDelete = "machine:delete"

	PermLocationView = "location:view"
	PermLocationEdit = "location:edit"

	PermMemberView   = "member:view"
	PermMemberManage = "member:manage"
	PermRoleView     = "role:view"
	PermRoleManage   = "role:manage"

	PermOrganizationManage = "organization:manage"

	// PermPinballMapSync gates the PinballMap integration endpoint.
	PermPinballMapSync = "pinballmap:sync"
)

// -----------------------------------------------------------------------------
// Role Templates
// Templates seed the roles of a new organization. Admin and Unauthenticated
// become system roles; the rest are ordinary editable roles.
// -----------------------------------------------------------------------------

const (
	// TemplateAdmin always expands to the whole catalog.
	TemplateAdmin = "Admin"

	TemplateTechnician = "Technician"

	// TemplateMember is the default role for new members.
	TemplateMember = "Member"

	// TemplateUnauthenticated holds the permissions of anonymous visitors.
	// Only anonymous-eligible permissions may appear in it.
	TemplateUnauthenticated = "Unauthenticated"
)

// SystemRoles lists the role names that cannot be renamed or deleted.
var SystemRoles = []string{TemplateAdmin, TemplateUnauthenticated}

// IsSystemRole reports whether name is one of the built-in role names.
func IsSystemRole(name string) bool {
	for _, r := range SystemRoles {
		if r == name {
			return true
		}
	}
	return false
}
