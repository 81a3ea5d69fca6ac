package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "University Timetable API",
        "description": "Conflict detection, span commits and common availability for university timetables",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Scheduling", "description": "Conflict checks, span commits and availability search"},
        {"name": "Scheduled Classes", "description": "Committed timetable entries"}
    ],
    "paths": {
        "/scheduling/validate": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Check a proposed class for conflicts",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateProposalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown teacher or room", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/validate-elective": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Check an elective broadcast across its target sections",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateProposalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/spans": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Commit a multi-period class atomically",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CommitSpanRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Rollback incomplete, meta lists orphaned members", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduling/availability": {
            "post": {
                "tags": ["Scheduling"],
                "summary": "Find slots where every listed teacher is free",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AvailabilityRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown teacher", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-classes": {
            "get": {
                "tags": ["Scheduled Classes"],
                "summary": "List scheduled classes",
                "parameters": [
                    {"name": "academicYearId", "in": "query", "type": "string"},
                    {"name": "programId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"},
                    {"name": "section", "in": "query", "type": "string"},
                    {"name": "teacherId", "in": "query", "type": "string"},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "dayIndex", "in": "query", "type": "integer"},
                    {"name": "spanId", "in": "query", "type": "string"},
                    {"name": "includeInactive", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Scheduled Classes"],
                "summary": "Validate and commit a single scheduled class",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateProposalRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scheduled-classes/{id}": {
            "get": {
                "tags": ["Scheduled Classes"],
                "summary": "Get scheduled class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Scheduled Classes"],
                "summary": "Move or edit a scheduled class",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateProposalRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Class is cancelled or part of a span", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Scheduled Classes"],
                "summary": "Cancel a scheduled class, or its whole span",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/spans/{id}": {
            "get": {
                "tags": ["Scheduled Classes"],
                "summary": "List the members of a span",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Recurrence": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["weekly", "alternate", "custom"]},
                "pattern": {"type": "string", "enum": ["odd", "even"]},
                "weeks": {"type": "array", "items": {"type": "integer"}}
            }
        },
        "ProposedClass": {
            "type": "object",
            "required": ["programId", "semester", "dayIndex", "slotIndex", "classType"],
            "properties": {
                "id": {"type": "string"},
                "programId": {"type": "string"},
                "semester": {"type": "integer"},
                "section": {"type": "string"},
                "dayIndex": {"type": "integer"},
                "slotIndex": {"type": "integer"},
                "classType": {"type": "string", "enum": ["lecture", "practical", "tutorial", "break"]},
                "subjectId": {"type": "string"},
                "teacherIds": {"type": "array", "items": {"type": "string"}},
                "roomId": {"type": "string"},
                "recurrence": {"$ref": "#/definitions/Recurrence"},
                "spanId": {"type": "string"},
                "electiveGroupId": {"type": "string"},
                "targetSections": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ValidateProposalRequest": {
            "type": "object",
            "required": ["academicYearId", "proposal"],
            "properties": {
                "academicYearId": {"type": "string"},
                "proposal": {"$ref": "#/definitions/ProposedClass"}
            }
        },
        "CommitSpanRequest": {
            "type": "object",
            "required": ["academicYearId", "slots"],
            "properties": {
                "academicYearId": {"type": "string"},
                "slots": {"type": "array", "items": {"$ref": "#/definitions/ProposedClass"}}
            }
        },
        "AvailabilityRequest": {
            "type": "object",
            "required": ["academicYearId", "teacherIds"],
            "properties": {
                "academicYearId": {"type": "string"},
                "teacherIds": {"type": "array", "items": {"type": "string"}},
                "constraints": {
                    "type": "object",
                    "properties": {
                        "minDuration": {"type": "integer"},
                        "excludeDays": {"type": "array", "items": {"type": "integer"}}
                    }
                }
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
