package http

import (
	"net/http"
	"strings"

	"github.com/artpar/tablegate/domain/route"
)

// OpenAPIDocument describes the bindings of table as an OpenAPI 3 document.
func OpenAPIDocument(table route.Table, version string, withUsers bool) map[string]any {
	paths := make(map[string]any)

	for _, b := range table.Bindings {
		var op map[string]any
		switch {
		case b.Target == route.TargetTypes:
			op = typesOperation()
		case withUsers && b.Entity == UsersEntity:
			continue
		default:
			op = map[string]any{
				"summary": "Entity endpoint for " + b.Entity,
				"tags":    []string{"Entities"},
				"responses": map[string]any{
					"200": textResponse("Fixed diagnostic body"),
				},
			}
		}
		addOperation(paths, b.Path, b.Method, op)
	}

	if withUsers {
		if _, ok := table.Lookup(http.MethodPost, "/"+UsersEntity); ok {
			for path, ops := range usersPaths() {
				for method, op := range ops {
					addOperation(paths, path, method, op)
				}
			}
		}
	}

	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "tablegate",
			"version": version,
		},
		"paths": paths,
		"components": map[string]any{
			"schemas": map[string]any{
				"Error": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"code":    map[string]any{"type": "integer"},
						"message": map[string]any{"type": "string"},
					},
				},
				"User": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"id":         map[string]any{"type": "string"},
						"username":   map[string]any{"type": "string"},
						"created_at": map[string]any{"type": "string", "format": "date-time"},
						"updated_at": map[string]any{"type": "string", "format": "date-time"},
					},
				},
			},
		},
	}
}

func addOperation(paths map[string]any, path, method string, op map[string]any) {
	item, ok := paths[path].(map[string]any)
	if !ok {
		item = make(map[string]any)
		paths[path] = item
	}
	item[strings.ToLower(method)] = op
}

func typesOperation() map[string]any {
	return map[string]any{
		"summary": "Define an entity",
		"tags":    []string{"Schema"},
		"requestBody": map[string]any{
			"required": true,
			"content": map[string]any{
				"application/json": map[string]any{
					"schema": map[string]any{
						"type":     "object",
						"required": []string{"name", "fields"},
						"properties": map[string]any{
							"name": map[string]any{"type": "string"},
							"fields": map[string]any{
								"type": "array",
								"items": map[string]any{
									"type":     "array",
									"items":    map[string]any{"type": "string"},
									"minItems": 2,
									"maxItems": 2,
								},
							},
						},
					},
				},
			},
		},
		"responses": map[string]any{
			"200": textResponse("CREATE TABLE statement"),
			"400": errorResponse("Invalid definition"),
			"500": textResponse("Statement and store error"),
		},
	}
}

func usersPaths() map[string]map[string]map[string]any {
	userBody := map[string]any{
		"content": map[string]any{
			"application/json": map[string]any{
				"schema": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"username": map[string]any{"type": "string"},
						"password": map[string]any{"type": "string"},
					},
				},
			},
		},
	}
	idParam := []any{map[string]any{
		"name": "id", "in": "path", "required": true,
		"schema": map[string]any{"type": "string"},
	}}

	return map[string]map[string]map[string]any{
		"/users": {
			http.MethodPost: {
				"summary":     "Create a user",
				"tags":        []string{"Users"},
				"requestBody": userBody,
				"responses": map[string]any{
					"201": userResponse("Created"),
					"409": errorResponse("Username already exists"),
					"500": errorResponse("Internal server error"),
				},
			},
			http.MethodGet: {
				"summary": "List users",
				"tags":    []string{"Users"},
				"responses": map[string]any{
					"200": map[string]any{
						"description": "Users",
						"content": map[string]any{"application/json": map[string]any{
							"schema": map[string]any{"type": "array", "items": map[string]any{"$ref": "#/components/schemas/User"}},
						}},
					},
				},
			},
		},
		"/users/{id}": {
			http.MethodGet: {
				"summary":    "Get a user",
				"tags":       []string{"Users"},
				"parameters": idParam,
				"responses":  map[string]any{"200": userResponse("User or null")},
			},
			http.MethodPut: {
				"summary":     "Update a user",
				"tags":        []string{"Users"},
				"parameters":  idParam,
				"requestBody": userBody,
				"responses":   map[string]any{"200": userResponse("Updated user or null")},
			},
			http.MethodDelete: {
				"summary":    "Delete a user",
				"tags":       []string{"Users"},
				"parameters": idParam,
				"responses":  map[string]any{"204": map[string]any{"description": "Deleted"}},
			},
		},
	}
}

func textResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content":     map[string]any{"text/plain": map[string]any{"schema": map[string]any{"type": "string"}}},
	}
}

func errorResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content": map[string]any{"application/json": map[string]any{
			"schema": map[string]any{"$ref": "#/components/schemas/Error"},
		}},
	}
}

func userResponse(desc string) map[string]any {
	return map[string]any{
		"description": desc,
		"content": map[string]any{"application/json": map[string]any{
			"schema": map[string]any{"$ref": "#/components/schemas/User", "nullable": true},
		}},
	}
}
