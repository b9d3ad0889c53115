package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "OAPET Schedule Engine API",
        "description": "Timetable generation and evaluation engine for university class schedules",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedules", "description": "Timetable containers and publication workflow"},
        {"name": "Generation", "description": "Occurrence generation, preview and async jobs"},
        {"name": "Evaluation", "description": "Scoring, grading and conflict audits"},
        {"name": "Occurrences", "description": "Manual lifecycle of dated sessions"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "classId", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create a draft schedule",
                "responses": {"201": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get a schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Delete a draft schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"204": {"description": "Deleted"}}
            }
        },
        "/schedules/{id}/status": {
            "put": {
                "tags": ["Schedules"],
                "summary": "Move a schedule through the publication workflow",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/generate": {
            "post": {
                "tags": ["Generation"],
                "summary": "Generate occurrences for a schedule",
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/generate/async": {
            "post": {
                "tags": ["Generation"],
                "summary": "Enqueue an asynchronous generation run",
                "responses": {"202": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/generate/jobs/{id}": {
            "get": {
                "tags": ["Generation"],
                "summary": "Get async generation job status",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/{id}/score": {
            "get": {
                "tags": ["Evaluation"],
                "summary": "Evaluate a schedule",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/schedules/{id}/conflicts": {
            "get": {
                "tags": ["Evaluation"],
                "summary": "Audit a schedule for conflicts",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/occurrences/{id}": {
            "patch": {
                "tags": ["Occurrences"],
                "summary": "Modify a session occurrence in place",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/occurrences/{id}/cancel": {
            "post": {
                "tags": ["Occurrences"],
                "summary": "Cancel a session occurrence",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"$ref": "#/responses/Envelope"}}
            }
        },
        "/occurrences/{id}/reschedule": {
            "post": {
                "tags": ["Occurrences"],
                "summary": "Reschedule a session occurrence",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {"201": {"$ref": "#/responses/Envelope"}}
            }
        }
    },
    "responses": {
        "Envelope": {
            "description": "Standard response envelope",
            "schema": {"$ref": "#/definitions/ResponseEnvelope"}
        }
    },
    "definitions": {
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
