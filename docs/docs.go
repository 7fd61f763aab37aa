// Package docs registers the OpenAPI description served under /docs.
// Regenerate the template with `swag init -g cmd/server/main.go`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/unifiedui/multiagent-service",
            "email": "support@unifiedui.io"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/multiagent/health": {
            "get": {"tags": ["Health"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "Service healthy"}, "503": {"description": "Service unhealthy"}}}
        },
        "/api/v1/multiagent/agents": {
            "get": {"tags": ["Agents"], "summary": "List agents", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Agents"], "summary": "Register an agent", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/multiagent/chats": {
            "get": {"tags": ["Chats"], "summary": "List conversations", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/multiagent/chats/{chatId}/turn": {
            "post": {"tags": ["Chats"], "summary": "Send a message", "consumes": ["application/json"], "produces": ["application/json", "text/event-stream"], "parameters": [{"type": "string", "name": "chatId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/multiagent/chats/{chatId}/messages": {
            "put": {"tags": ["Chats"], "summary": "Replace a conversation's messages", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "chatId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "409": {"description": "Conflict"}}}
        },
        "/api/v1/multiagent/groupchats": {
            "get": {"tags": ["GroupChats"], "summary": "List group chats", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["GroupChats"], "summary": "Create a group chat", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/multiagent/groupchats/{groupId}/chat": {
            "post": {"tags": ["GroupChats"], "summary": "Send a message to a group", "consumes": ["application/json"], "produces": ["application/json", "text/event-stream"], "parameters": [{"type": "string", "name": "groupId", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}}}
        },
        "/api/v1/multiagent/groupchats/{groupId}/discussions": {
            "post": {"tags": ["Discussions"], "summary": "Start a discussion", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"type": "string", "name": "groupId", "in": "path", "required": true}], "responses": {"202": {"description": "Accepted"}}}
        },
        "/api/v1/multiagent/discussions/{discussionId}": {
            "get": {"tags": ["Discussions"], "summary": "Get discussion progress", "produces": ["application/json"], "parameters": [{"type": "string", "name": "discussionId", "in": "path", "required": true}], "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/multiagent/dispatch": {
            "post": {"tags": ["Dispatch"], "summary": "Call the dispatch center", "consumes": ["application/json"], "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8085",
	BasePath:         "/",
	Schemes:          []string{"http", "https"},
	Title:            "Multi-Agent Chat Service API",
	Description:      "Orchestrates conversations between a user and a roster of FastGPT agents.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
