package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "TalentBoard Pipeline API",
        "description": "Recruitment pipeline backend: selection processes, invitations and compatibility scoring",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Selection Processes", "description": "Pipeline runs and their transition ledger"},
        {"name": "Invitations", "description": "Time-boxed recruiter invitations"},
        {"name": "Compatibility", "description": "Cached candidate/posting fit scores"},
        {"name": "Exports", "description": "Asynchronous stage history exports"}
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
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        },
        "/selection-processes": {
            "get": {
                "tags": ["Selection Processes"],
                "summary": "List selection processes",
                "parameters": [
                    {"name": "job_posting_id", "in": "query", "type": "string"},
                    {"name": "stage_id", "in": "query", "type": "string"},
                    {"name": "active_only", "in": "query", "type": "boolean"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Selection Processes"],
                "summary": "Start a selection process",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StartProcessRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Process already exists for the application"},
                    "422": {"description": "Application not eligible"}
                }
            }
        },
        "/selection-processes/{id}": {
            "get": {
                "tags": ["Selection Processes"],
                "summary": "Get a selection process",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/selection-processes/{id}/transitions": {
            "post": {
                "tags": ["Selection Processes"],
                "summary": "Move a process to another stage",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TransitionRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Concurrent modification"},
                    "422": {"description": "Invalid transition"}
                }
            }
        },
        "/selection-processes/{id}/history": {
            "get": {
                "tags": ["Selection Processes"],
                "summary": "Stage transition history, newest first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invitations": {
            "get": {
                "tags": ["Invitations"],
                "summary": "List invitations",
                "parameters": [
                    {"name": "job_posting_id", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Invitations"],
                "summary": "Invite a candidate to a posting",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SendInvitationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Pending invitation already exists"}
                }
            }
        },
        "/invitations/{id}": {
            "get": {
                "tags": ["Invitations"],
                "summary": "Get an invitation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/invitations/{id}/response": {
            "post": {
                "tags": ["Invitations"],
                "summary": "Accept or decline an invitation",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RespondInvitationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already answered"},
                    "422": {"description": "Invitation expired"}
                }
            }
        },
        "/compatibility/{candidate_id}/{job_posting_id}": {
            "get": {
                "tags": ["Compatibility"],
                "summary": "Compatibility score for a pair",
                "parameters": [
                    {"name": "candidate_id", "in": "path", "required": true, "type": "string"},
                    {"name": "job_posting_id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not computed yet"}
                }
            }
        },
        "/job-postings/{id}/compatibility": {
            "get": {
                "tags": ["Compatibility"],
                "summary": "Ranked scores for a posting",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a stage history export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateExportRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File stream"},
                    "404": {"description": "Unknown or expired token"}
                }
            }
        }
    },
    "definitions": {
        "SelectionProcess": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "application_id": {"type": "string"},
                "job_posting_id": {"type": "string"},
                "current_stage_id": {"type": "string"},
                "version": {"type": "integer"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "StageTransition": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "selection_process_id": {"type": "string"},
                "from_stage_id": {"type": "string"},
                "to_stage_id": {"type": "string"},
                "actor_id": {"type": "string"},
                "feedback": {"type": "string"},
                "transitioned_at": {"type": "string"}
            }
        },
        "Invitation": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "job_posting_id": {"type": "string"},
                "recipient_id": {"type": "string"},
                "sender_id": {"type": "string"},
                "status": {"type": "string"},
                "message": {"type": "string"},
                "sent_at": {"type": "string"},
                "expires_at": {"type": "string"},
                "responded_at": {"type": "string"}
            }
        },
        "CompatibilityScore": {
            "type": "object",
            "properties": {
                "candidate_id": {"type": "string"},
                "job_posting_id": {"type": "string"},
                "score": {"type": "integer"},
                "justification": {"type": "string"},
                "computed_at": {"type": "string"}
            }
        },
        "StartProcessRequest": {
            "type": "object",
            "properties": {
                "application_id": {"type": "string"}
            },
            "required": ["application_id"]
        },
        "TransitionRequest": {
            "type": "object",
            "properties": {
                "to_stage_id": {"type": "string"},
                "feedback": {"type": "string"}
            },
            "required": ["to_stage_id"]
        },
        "SendInvitationRequest": {
            "type": "object",
            "properties": {
                "job_posting_id": {"type": "string"},
                "recipient_id": {"type": "string"},
                "message": {"type": "string"},
                "ttl": {"type": "string"}
            },
            "required": ["job_posting_id", "recipient_id"]
        },
        "RespondInvitationRequest": {
            "type": "object",
            "properties": {
                "action": {"type": "string", "enum": ["accept", "decline"]}
            },
            "required": ["action"]
        },
        "CreateExportRequest": {
            "type": "object",
            "properties": {
                "process_id": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
            },
            "required": ["process_id", "format"]
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
