package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Elective Seat API",
        "description": "Course seat allocation with waitlists, time-limited offers and live seat counters",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Courses", "description": "Catalogue with live counters"},
        {"name": "Registrations", "description": "Seat requests, drops and offer confirmation"},
        {"name": "Admin", "description": "Course management and rosters"},
        {"name": "Internal", "description": "Scheduler hooks"}
    ],
    "paths": {
        "/health": {
            "get": {"summary": "Liveness check", "responses": {"200": {"description": "OK"}}}
        },
        "/ready": {
            "get": {"summary": "Readiness check", "responses": {"200": {"description": "Ready"}, "503": {"description": "Degraded"}}}
        },
        "/api/v1/courses": {
            "get": {
                "tags": ["Courses"],
                "summary": "List courses with live seat counters",
                "parameters": [
                    {"name": "department", "in": "query", "type": "string"},
                    {"name": "q", "in": "query", "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/courses/stream": {
            "get": {
                "tags": ["Courses"],
                "summary": "Server-sent seat-update events",
                "produces": ["text/event-stream"],
                "parameters": [{"name": "course_id", "in": "query", "type": "string"}],
                "responses": {"200": {"description": "Event stream"}, "503": {"description": "Live updates unavailable"}}
            }
        },
        "/api/v1/courses/{id}": {
            "get": {
                "tags": ["Courses"],
                "summary": "Get course",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/courses/{id}/register": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Request a seat; admits, waitlists or fails with RESOURCE_EXHAUSTED",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "201": {"description": "Admitted or waitlisted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "VALIDATION_FAILED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "RESOURCE_EXHAUSTED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "STORAGE_FAILURE, safe to retry", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/me/registrations": {
            "get": {
                "tags": ["Registrations"],
                "summary": "My registrations partitioned by status",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/registrations/{id}/drop": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Drop a registration, waitlist entry or pending offer",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Released", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Not the owner", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/registrations/{id}/accept": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Confirm a pending offer",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "NOT_PENDING", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "OFFER_EXPIRED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/offers/accept": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Confirm a pending offer from a signed link",
                "parameters": [{"name": "token", "in": "query", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "Registered", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid link", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "410": {"description": "OFFER_EXPIRED", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/courses": {
            "post": {
                "tags": ["Admin"],
                "summary": "Create course",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/api/v1/admin/courses/{id}": {
            "put": {
                "tags": ["Admin"],
                "summary": "Update course details and capacity",
                "security": [{"Bearer": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CourseRequest"}}
                ],
                "responses": {
                    "200": {"description": "Updated with any promoted offers", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "CAPACITY_VIOLATION", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Admin"],
                "summary": "Delete course without registrations",
                "security": [{"Bearer": []}],
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "COURSE_IN_USE", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/admin/courses/{id}/roster": {
            "get": {
                "tags": ["Admin"],
                "summary": "Export roster as CSV or PDF",
                "security": [{"Bearer": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/api/v1/admin/metrics/summary": {
            "get": {
                "tags": ["Admin"],
                "summary": "Admission counters snapshot",
                "security": [{"Bearer": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/internal/waitlist/expire": {
            "post": {
                "tags": ["Internal"],
                "summary": "Expire lapsed offers (cron secret bearer)",
                "responses": {
                    "200": {"description": "Sweep summary", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Bad secret"}
                }
            }
        }
    },
    "definitions": {
        "CourseSchedule": {
            "type": "object",
            "required": ["day_of_week", "start_time", "end_time"],
            "properties": {
                "day_of_week": {"type": "string", "enum": ["MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"]},
                "start_time": {"type": "string", "example": "09:00"},
                "end_time": {"type": "string", "example": "10:30"}
            }
        },
        "CourseRequest": {
            "type": "object",
            "required": ["course_code", "title", "credits"],
            "properties": {
                "course_code": {"type": "string"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "department": {"type": "string"},
                "professor": {"type": "string"},
                "credits": {"type": "integer"},
                "total_seats": {"type": "integer"},
                "waitlist_capacity": {"type": "integer"},
                "schedules": {"type": "array", "items": {"$ref": "#/definitions/CourseSchedule"}}
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
