package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "GoLabing.ai Console API",
        "description": "Admin console and storefront for the GoLabing.ai lab rental platform",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Authentication", "description": "Console session, profile and organization preview"},
        {"name": "Catalogue", "description": "Purchasable lab offerings"},
        {"name": "Cart", "description": "Per-user cart and hosted checkout"},
        {"name": "Resources", "description": "Provisioned cloud VMs, datacenter VMs and clusters"},
        {"name": "Users", "description": "Platform users and organization administrators"},
        {"name": "Organizations", "description": "Tenant organizations"},
        {"name": "Audit", "description": "Audit trail of admin mutations"},
        {"name": "Events", "description": "Server-sent console events"},
        {"name": "System", "description": "Runtime metrics"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Sign in",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}},
                    {"name": "redirect", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {"tags": ["Authentication"], "summary": "Sign out", "responses": {"200": {"description": "OK"}}}
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current session",
                "parameters": [{"name": "revalidate", "in": "query", "type": "boolean"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/auth/switch-organization": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Preview an organization as its admin",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OrganizationRef"}}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/auth/reset-role": {
            "post": {"tags": ["Authentication"], "summary": "Leave organization preview", "responses": {"200": {"description": "OK"}}}
        },
        "/catalogue": {
            "get": {
                "tags": ["Catalogue"],
                "summary": "Catalogue listing",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "level", "in": "query", "type": "string"},
                    {"name": "category", "in": "query", "type": "string"},
                    {"name": "provider", "in": "query", "type": "string"},
                    {"name": "free", "in": "query", "type": "boolean"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Catalogue"],
                "summary": "Create a catalogue entry",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CatalogueInput"}}],
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/catalogue/{id}": {
            "get": {
                "tags": ["Catalogue"],
                "summary": "Catalogue entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "put": {
                "tags": ["Catalogue"],
                "summary": "Edit a catalogue entry",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CatalogueInput"}}
                ],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            },
            "delete": {
                "tags": ["Catalogue"],
                "summary": "Delete a catalogue entry",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Forbidden"}}
            }
        },
        "/cart": {
            "get": {"tags": ["Cart"], "summary": "Cart contents", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Cart"], "summary": "Empty the cart", "responses": {"200": {"description": "OK"}}}
        },
        "/cart/items": {
            "post": {
                "tags": ["Cart"],
                "summary": "Add a lab to the cart",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AddToCartRequest"}}],
                "responses": {"201": {"description": "Created"}, "409": {"description": "Already in cart"}}
            }
        },
        "/cart/items/{id}": {
            "patch": {
                "tags": ["Cart"],
                "summary": "Change duration or quantity of a cart line",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Cart"],
                "summary": "Remove a cart line",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/cart/checkout": {
            "post": {
                "tags": ["Cart"],
                "summary": "Start hosted checkout",
                "responses": {"200": {"description": "OK"}, "204": {"description": "Cart is empty"}, "502": {"description": "Checkout failed"}}
            }
        },
        "/resources/{kind}": {
            "get": {
                "tags": ["Resources"],
                "summary": "List provisioned labs of a kind",
                "parameters": [{"name": "kind", "in": "path", "required": true, "type": "string", "enum": ["cloud_vm", "datacenter_vm", "cluster"]}],
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/resources/{kind}/{id}": {
            "put": {
                "tags": ["Resources"],
                "summary": "Edit a provisioned lab",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK"}}
            },
            "delete": {
                "tags": ["Resources"],
                "summary": "Delete a provisioned lab, or detach a cluster from the organization",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/resources/{kind}/{id}/credentials/{credentialId}/connect": {
            "post": {
                "tags": ["Resources"],
                "summary": "Open a remote session to a VM",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "credentialId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "Signed viewer route"}, "412": {"description": "Login disabled"}}
            }
        },
        "/resources/{kind}/{id}/convert": {
            "post": {
                "tags": ["Resources"],
                "summary": "Convert a provisioned lab into a catalogue entry",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ConversionRequest"}}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "A step was rejected; meta.result names it"}}
            }
        },
        "/users": {
            "get": {"tags": ["Users"], "summary": "List users", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Users"], "summary": "Create a user", "responses": {"201": {"description": "Created"}}}
        },
        "/users/export": {
            "get": {
                "tags": ["Users"],
                "summary": "Export users",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/users/bulk": {
            "post": {
                "tags": ["Users"],
                "summary": "Create users from a CSV file",
                "consumes": ["multipart/form-data"],
                "parameters": [{"name": "file", "in": "formData", "required": true, "type": "file"}],
                "responses": {"201": {"description": "Created"}, "400": {"description": "Row errors in meta.errors"}}
            }
        },
        "/organizations": {
            "get": {"tags": ["Organizations"], "summary": "List organizations", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Organizations"], "summary": "Create an organization", "responses": {"201": {"description": "Created"}}}
        },
        "/organizations/{id}": {
            "delete": {
                "tags": ["Organizations"],
                "summary": "Delete an organization",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}, "409": {"description": "Own organization"}}
            }
        },
        "/audit-logs": {
            "get": {
                "tags": ["Audit"],
                "summary": "Audit trail",
                "parameters": [
                    {"name": "actorId", "in": "query", "type": "string"},
                    {"name": "action", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK"}, "412": {"description": "Audit trail disabled"}}
            }
        },
        "/events": {
            "get": {"tags": ["Events"], "summary": "Server-sent console events", "produces": ["text/event-stream"], "responses": {"200": {"description": "Stream"}}}
        },
        "/system/metrics": {
            "get": {"tags": ["System"], "summary": "Console runtime metrics", "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "OrganizationRef": {
            "type": "object",
            "required": ["id", "name"],
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "role": {"type": "string"}
            }
        },
        "CatalogueInput": {
            "type": "object",
            "required": ["title", "level"],
            "properties": {
                "title": {"type": "string"},
                "description": {"type": "string"},
                "provider": {"type": "string"},
                "duration": {"type": "number"},
                "level": {"type": "string", "enum": ["foundation", "beginner", "intermediate", "advanced", "expert"]},
                "category": {"type": "string"},
                "price": {"type": "number"},
                "isFree": {"type": "boolean"},
                "software": {"type": "array", "items": {"type": "string"}}
            }
        },
        "AddToCartRequest": {
            "type": "object",
            "required": ["labId"],
            "properties": {"labId": {"type": "string"}}
        },
        "ConversionRequest": {
            "type": "object",
            "required": ["name", "level", "organizationId"],
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "price": {"type": "number"},
                "level": {"type": "string"},
                "category": {"type": "string"},
                "organizationId": {"type": "string"},
                "numberOfInstances": {"type": "integer"},
                "numberOfDays": {"type": "integer"},
                "hoursPerDay": {"type": "integer"},
                "expiresIn": {"type": "string"},
                "startDate": {"type": "string"},
                "credentialIds": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
