// Package docs registers the PinPoint OpenAPI document with swag. The
// document mirrors the annotations on the HTTP handlers and is served at
// /swagger/doc.json.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/auth/sign-in": {
            "post": {
                "description": "Authenticates with email and password and issues a session token",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Sign in",
                "parameters": [
                    {"description": "Credentials", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.SignInRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.SignInResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "423": {"description": "Locked", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/auth/sign-out": {
            "post": {
                "tags": ["Auth"],
                "summary": "Sign out",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/me/authorization": {
            "get": {
                "description": "Returns the organization, role and effective permissions of the caller",
                "produces": ["application/json"],
                "tags": ["Auth"],
                "summary": "Current authorization",
                "parameters": [
                    {"type": "string", "description": "Organization subdomain", "name": "X-Organization", "in": "header"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/http.AuthorizationResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/machines": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Machines"],
                "summary": "List machines",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/issue.Machine"}}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Machines"],
                "summary": "Create machine",
                "parameters": [
                    {"description": "Machine", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateMachineRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/issue.Machine"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/machines/{machineID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Machines"],
                "summary": "Get machine",
                "parameters": [
                    {"type": "string", "description": "Machine ID", "name": "machineID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/issue.Machine"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/issues": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Issues"],
                "summary": "List issues",
                "parameters": [
                    {"type": "string", "description": "Machine ID", "name": "machine_id", "in": "query"},
                    {"enum": ["new", "in_progress", "resolved"], "type": "string", "description": "Status", "name": "status", "in": "query"},
                    {"type": "integer", "description": "Maximum number of issues", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/issue.Issue"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Issues"],
                "summary": "Report issue",
                "parameters": [
                    {"description": "Issue", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ReportIssueRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/issue.Issue"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/issues/{issueID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Issues"],
                "summary": "Get issue",
                "parameters": [
                    {"type": "string", "description": "Issue ID", "name": "issueID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/issue.Issue"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            },
            "delete": {
                "security": [{"CookieAuth": []}],
                "tags": ["Issues"],
                "summary": "Delete issue",
                "parameters": [
                    {"type": "string", "description": "Issue ID", "name": "issueID", "in": "path", "required": true}
                ],
                "responses": {"204": {"description": "No Content"}}
            },
            "patch": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Issues"],
                "summary": "Update issue",
                "parameters": [
                    {"type": "string", "description": "Issue ID", "name": "issueID", "in": "path", "required": true},
                    {"description": "Changes", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.UpdateIssueRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/issue.Issue"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/public/machines/{machineID}/issues": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Public"],
                "summary": "Report issue anonymously",
                "parameters": [
                    {"type": "string", "description": "Machine ID", "name": "machineID", "in": "path", "required": true},
                    {"description": "Issue", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.ReportIssueRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/issue.Issue"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "429": {"description": "Too Many Requests", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/roles": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "List roles",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/authz.Role"}}}
                }
            },
            "post": {
                "security": [{"CookieAuth": []}],
                "description": "Creates a role from a template or an explicit permission list",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "Create role",
                "parameters": [
                    {"description": "Role", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.CreateRoleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/authz.Role"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/http.errorBody"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/roles/{roleID}": {
            "delete": {
                "security": [{"CookieAuth": []}],
                "tags": ["Roles"],
                "summary": "Delete role",
                "parameters": [
                    {"type": "string", "description": "Role ID", "name": "roleID", "in": "path", "required": true},
                    {"type": "string", "description": "Role receiving the members", "name": "reassign_to", "in": "query"}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/roles/{roleID}/permissions": {
            "put": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Roles"],
                "summary": "Replace role permissions",
                "parameters": [
                    {"type": "string", "description": "Role ID", "name": "roleID", "in": "path", "required": true},
                    {"description": "Permissions", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.RolePermissionsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authz.Role"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/http.errorBody"}}
                }
            }
        },
        "/members": {
            "get": {
                "security": [{"CookieAuth": []}],
                "produces": ["application/json"],
                "tags": ["Members"],
                "summary": "List members",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/authz.Membership"}}}
                }
            }
        },
        "/members/{userID}": {
            "put": {
                "security": [{"CookieAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Members"],
                "summary": "Add member or change role",
                "parameters": [
                    {"type": "string", "description": "User ID", "name": "userID", "in": "path", "required": true},
                    {"description": "Role", "name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/http.PutMemberRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/authz.Membership"}},
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/authz.Membership"}}
                }
            }
        },
        "/integrations/pinballmap/sync": {
            "post": {
                "security": [{"CookieAuth": []}],
                "tags": ["Integrations"],
                "summary": "Request PinballMap sync",
                "responses": {
                    "202": {"description": "Accepted", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "authz.Membership": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "user_id": {"type": "string"},
                "organization_id": {"type": "string"},
                "role_id": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "authz.Role": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "organization_id": {"type": "string"},
                "name": {"type": "string"},
                "is_system": {"type": "boolean"},
                "is_default": {"type": "boolean"},
                "permissions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.AuthorizationResponse": {
            "type": "object",
            "properties": {
                "organization_id": {"type": "string"},
                "subdomain": {"type": "string"},
                "user_id": {"type": "string"},
                "anonymous": {"type": "boolean"},
                "role": {"type": "string"},
                "source": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.CreateMachineRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "location": {"type": "string"}
            }
        },
        "http.CreateRoleRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "template": {"type": "string"},
                "permissions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.PutMemberRequest": {
            "type": "object",
            "properties": {"role_id": {"type": "string"}}
        },
        "http.ReportIssueRequest": {
            "type": "object",
            "properties": {
                "machine_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "severity": {"type": "string", "enum": ["minor", "playable", "unplayable"]},
                "reporter_email": {"type": "string"},
                "attachments": {"type": "array", "items": {"type": "string"}}
            }
        },
        "http.RolePermissionsRequest": {
            "type": "object",
            "properties": {"permissions": {"type": "array", "items": {"type": "string"}}}
        },
        "http.SignInRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string", "example": "admin@example.com"},
                "password": {"type": "string"}
            }
        },
        "http.SignInResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "expires_at": {"type": "string"},
                "user_id": {"type": "string"},
                "organization_id": {"type": "string"}
            }
        },
        "http.UpdateIssueRequest": {
            "type": "object",
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "severity": {"type": "string"},
                "status": {"type": "string"},
                "assigned_to": {"type": "string"}
            }
        },
        "http.errorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "message": {"type": "string"},
                "required_permission": {"type": "string"}
            }
        },
        "issue.Issue": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "organization_id": {"type": "string"},
                "machine_id": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "severity": {"type": "string"},
                "status": {"type": "string"},
                "created_by": {"type": "string"},
                "assigned_to": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "issue.Machine": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "organization_id": {"type": "string"},
                "name": {"type": "string"},
                "location": {"type": "string"},
                "created_at": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"},
        "CookieAuth": {"type": "apiKey", "name": "pinpoint_session", "in": "cookie"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "PinPoint API",
	Description:      "Multi-tenant pinball machine issue tracker",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
