// Package docs registers the Swagger description of the REST API with swag.
// Regenerate with `swag init` after changing handler annotations.
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
        "/ping": {"get": {"tags": ["test"], "summary": "Endpoint just pings the server", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/public_key": {"get": {"tags": ["security"], "summary": "Server public key", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}},
        "/register": {"post": {"tags": ["auth"], "summary": "Register a new player", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/envelope.Envelope"}}], "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/envelope.Envelope"}}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}},
        "/login": {"post": {"tags": ["auth"], "summary": "Log in", "consumes": ["application/json"], "produces": ["application/json"], "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/envelope.Envelope"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/envelope.Envelope"}}, "401": {"description": "Unauthorized"}}}},
        "/auth/logout": {"delete": {"security": [{"ApiKeyAuth": []}], "tags": ["auth"], "summary": "Log out", "responses": {"200": {"description": "OK"}}}},
        "/create_room": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Create a room", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/envelope.Envelope"}}}}},
        "/join_room_route": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Join a room", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/envelope.Envelope"}}], "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/envelope.Envelope"}}, "404": {"description": "Not Found"}, "409": {"description": "Conflict"}}}},
        "/remove_player_from_room": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Leave a room", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/envelope.Envelope"}}], "responses": {"200": {"description": "OK"}}}},
        "/get_room_data": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Room state", "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/envelope.Envelope"}}], "responses": {"200": {"description": "OK"}}}},
        "/get_group1": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Team 1 members", "responses": {"200": {"description": "OK"}}}},
        "/get_group2": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["rooms"], "summary": "Team 2 members", "responses": {"200": {"description": "OK"}}}},
        "/get_characters": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["characters"], "summary": "List characters", "responses": {"200": {"description": "OK"}}}},
        "/get_character": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["characters"], "summary": "Get a character", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/save_character": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["characters"], "summary": "Save a character", "responses": {"201": {"description": "Created"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}},
        "/edit_character": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["characters"], "summary": "Edit a character", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/delete_character": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["characters"], "summary": "Delete a character", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}},
        "/get_abilities": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["abilities"], "summary": "List abilities", "responses": {"200": {"description": "OK"}}}},
        "/get_ability_details": {"post": {"security": [{"ApiKeyAuth": []}], "tags": ["abilities"], "summary": "Ability details", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}}
    },
    "definitions": {
        "envelope.Envelope": {
            "type": "object",
            "properties": {
                "encrypted": {"type": "boolean"},
                "method": {"type": "string", "enum": ["hybrid", "symmetric-fallback"]},
                "encrypted_key": {"type": "string"},
                "iv": {"type": "string"},
                "data": {"type": "string"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Forest API",
	Description:      "Gin-Gonic server for the Forest turn-based match API. Request and response bodies are encrypted envelopes.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
