package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TVB Ad Scheduler API",
        "description": "Break slot allocation and broadcast LOG conversion",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Arrangement", "description": "Break zone placements and automatic arrangement"},
        {"name": "Logs", "description": "Freeze a channel day into its broadcast LOG"},
        {"name": "Catalogue", "description": "Read-only material lookup"}
    ],
    "paths": {
        "/arrangements/{channelId}/{date}": {
            "get": {
                "tags": ["Arrangement"],
                "summary": "Get the break arrangement of a channel day",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "No schedule", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/placements": {
            "post": {
                "tags": ["Arrangement"],
                "summary": "Insert a material into a break zone",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/InsertPlacementRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "VERSION_CONFLICT or DAY_CONVERTED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Placement rule violated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/placements/{placementId}": {
            "delete": {
                "tags": ["Arrangement"],
                "summary": "Remove a placement",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "placementId", "in": "path", "required": true, "type": "string"},
                    {"name": "version", "in": "query", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "VERSION_CONFLICT or DAY_CONVERTED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/placements/{placementId}/move": {
            "post": {
                "tags": ["Arrangement"],
                "summary": "Move a placement to another position or zone",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "placementId", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MovePlacementRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Placement rule violated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/auto-arrange": {
            "post": {
                "tags": ["Arrangement"],
                "summary": "Arrange a material pool into a channel day",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AutoArrangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Placed and unplaced entries", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/reset": {
            "post": {
                "tags": ["Arrangement"],
                "summary": "Clear every placement of an open day",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VersionedRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangements/{channelId}/{date}/check": {
            "get": {
                "tags": ["Arrangement"],
                "summary": "Re-validate stored placements against the current catalogue",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"}
                ],
                "responses": {
                    "200": {"description": "Violations found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/arrangement-batches/{date}": {
            "post": {
                "tags": ["Arrangement"],
                "summary": "Arrange one material pool across several channels of a date",
                "parameters": [
                    {"$ref": "#/parameters/date"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchAutoArrangeRequest"}}
                ],
                "responses": {
                    "200": {"description": "Joint result with per-channel save status", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logs/{channelId}/{date}/convert": {
            "post": {
                "tags": ["Logs"],
                "summary": "Freeze a channel day into its broadcast LOG",
                "description": "Idempotent. Converting a frozen day returns the stored export unchanged.",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"}
                ],
                "responses": {
                    "201": {"description": "Converted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "200": {"description": "Already converted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logs/{channelId}/{date}": {
            "get": {
                "tags": ["Logs"],
                "summary": "Fetch the canonical LOG export",
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"}
                ],
                "responses": {
                    "200": {"description": "Canonical JSON body, checksum in X-Log-Checksum"},
                    "412": {"description": "Day not converted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/logs/{channelId}/{date}/render": {
            "get": {
                "tags": ["Logs"],
                "summary": "Render a converted LOG as JSON, CSV or PDF",
                "produces": ["application/json", "text/csv", "application/pdf"],
                "parameters": [
                    {"$ref": "#/parameters/channelId"},
                    {"$ref": "#/parameters/date"},
                    {"name": "format", "in": "query", "required": true, "type": "string", "enum": ["json", "csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "Attachment"}
                }
            }
        },
        "/downloads/logs": {
            "get": {
                "tags": ["Logs"],
                "summary": "Download a stored LOG file with a signed token",
                "security": [],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Attachment"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/materials": {
            "get": {
                "tags": ["Catalogue"],
                "summary": "List catalogue materials",
                "parameters": [
                    {"name": "channelId", "in": "query", "type": "string"},
                    {"name": "kind", "in": "query", "type": "string", "enum": ["C", "I", "G", "9"]},
                    {"name": "date", "in": "query", "type": "string", "format": "date"},
                    {"name": "q", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/deliveries/{id}": {
            "get": {
                "tags": ["Logs"],
                "summary": "Get the delivery status of a converted LOG",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "parameters": {
        "channelId": {"name": "channelId", "in": "path", "required": true, "type": "string"},
        "date": {"name": "date", "in": "path", "required": true, "type": "string", "format": "date"}
    },
    "definitions": {
        "VersionedRequest": {
            "type": "object",
            "required": ["expectedVersion"],
            "properties": {
                "expectedVersion": {"type": "integer"}
            }
        },
        "InsertPlacementRequest": {
            "type": "object",
            "required": ["expectedVersion", "zoneId", "materialId", "position"],
            "properties": {
                "expectedVersion": {"type": "integer"},
                "zoneId": {"type": "string"},
                "materialId": {"type": "string"},
                "position": {"type": "integer", "minimum": 1},
                "orderId": {"type": "string"}
            }
        },
        "MovePlacementRequest": {
            "type": "object",
            "required": ["expectedVersion", "targetZoneId", "position"],
            "properties": {
                "expectedVersion": {"type": "integer"},
                "targetZoneId": {"type": "string"},
                "position": {"type": "integer", "minimum": 1}
            }
        },
        "PoolEntry": {
            "type": "object",
            "properties": {
                "materialId": {"type": "string"},
                "orderId": {"type": "string"},
                "material": {
                    "type": "object",
                    "properties": {
                        "id": {"type": "string"},
                        "durationSeconds": {"type": "integer"},
                        "kind": {"type": "string", "enum": ["C", "I", "G", "9"]},
                        "requiredPosition": {"type": "string", "enum": ["FIRST", "FIRST_TWO", "LAST_TWO", "LAST"]},
                        "exclusivityGroup": {"type": "string"},
                        "channels": {"type": "array", "items": {"type": "string"}},
                        "validFrom": {"type": "string", "format": "date-time"},
                        "validTo": {"type": "string", "format": "date-time"}
                    }
                }
            }
        },
        "AutoArrangeRequest": {
            "type": "object",
            "required": ["expectedVersion", "pool"],
            "properties": {
                "expectedVersion": {"type": "integer"},
                "pool": {"type": "array", "items": {"$ref": "#/definitions/PoolEntry"}},
                "dryRun": {"type": "boolean"}
            }
        },
        "BatchAutoArrangeRequest": {
            "type": "object",
            "required": ["channels", "pool"],
            "properties": {
                "channels": {
                    "type": "array",
                    "items": {
                        "type": "object",
                        "properties": {
                            "channelId": {"type": "string"},
                            "expectedVersion": {"type": "integer"}
                        }
                    }
                },
                "pool": {"type": "array", "items": {"$ref": "#/definitions/PoolEntry"}},
                "dryRun": {"type": "boolean"}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
