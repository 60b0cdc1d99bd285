package api

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
        "/health": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get the health status of the pipeline",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/stats": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get packet, record, codec and diagnostics counters",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Pipeline counters",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.Status"}}
                }
            }
        },
        "/blobs": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "List stored diagnostic payloads, newest first",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "List diagnostic blobs",
                "parameters": [
                    {"type": "integer", "description": "Maximum number of blobs", "name": "limit", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "array", "items": {"$ref": "#/definitions/api.BlobSummary"}}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/blobs/{id}": {
            "get": {
                "security": [{"ApiKeyAuth": []}],
                "description": "Get one diagnostic payload with its bytes hex encoded",
                "produces": ["application/json"],
                "tags": ["diagnostics"],
                "summary": "Get a diagnostic blob",
                "parameters": [
                    {"type": "string", "description": "Blob KSUID", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/api.BlobSummary"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/api.APIResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/api.APIResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus metrics, served outside the base path",
                "produces": ["text/plain"],
                "tags": ["metrics"],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "api.APIResponse": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "data": {},
                "error": {"type": "string"}
            }
        },
        "api.BlobSummary": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "feed": {"type": "string"},
                "stage": {"type": "string"},
                "reason": {"type": "string"},
                "time": {"type": "string"},
                "size": {"type": "integer"}
            }
        },
        "api.Status": {
            "type": "object",
            "properties": {
                "feed": {"type": "string"},
                "started_at": {"type": "string"},
                "packets": {"type": "integer"},
                "records": {"type": "integer"},
                "failures": {"type": "integer"},
                "unknown_codes": {"type": "integer"},
                "checksum_mismatches": {"type": "integer"},
                "short_packets": {"type": "integer"},
                "codec": {"type": "object"},
                "captured_frames": {"type": "integer"},
                "capture_errors": {"type": "integer"},
                "blobs_stored": {"type": "integer"},
                "blobs_dropped": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {
            "type": "apiKey",
            "name": "X-API-Key",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds the exported Swagger info so the host can be set at
// startup.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "127.0.0.1:9310",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Hermes Portal status API",
	Description:      "Status, counters and diagnostic payloads of a running feed pipeline.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
