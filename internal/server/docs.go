package server

import "github.com/swaggo/swag"

//go:generate swag init -g internal/server/docs.go -o docs/swagger

// @title LinkGuard API
// @version 0.1
// @description Submit links for URL-safety scanning and follow their progress.
// @contact.name LinkGuard Maintainers
// @contact.url https://github.com/raysh454/linkguard
// @BasePath /

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "LinkGuard Maintainers",
            "url": "https://github.com/raysh454/linkguard"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/scans": {
            "get": {
                "produces": ["application/json"],
                "tags": ["scans"],
                "summary": "List scan jobs",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {"type": "array", "items": {"$ref": "#/definitions/app.Job"}}
                    }
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["scans"],
                "summary": "Submit a link for scanning",
                "parameters": [
                    {
                        "description": "Link to scan",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/server.StartScanRequest"}
                    }
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/app.Job"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/server.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            }
        },
        "/scans/{jobID}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["scans"],
                "summary": "Get a scan job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/app.Job"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/server.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["scans"],
                "summary": "Cancel a scan job",
                "parameters": [
                    {"type": "string", "description": "Job ID", "name": "jobID", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/ws/scans": {
            "get": {
                "tags": ["scans"],
                "summary": "Scan a link and stream progress over a websocket",
                "parameters": [
                    {"type": "string", "description": "Link to scan", "name": "url", "in": "query", "required": true}
                ],
                "responses": {}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Upstream service status",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/health.Report"}}
                }
            }
        }
    },
    "definitions": {
        "app.Job": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "url": {"type": "string"},
                "status": {"type": "string", "enum": ["pending", "running", "done", "failed", "canceled"]},
                "phase": {"type": "string", "enum": ["IDLE", "UNSHORTENING", "SCANNING", "ANALYZING", "COMPLETE", "ERROR"]},
                "error": {"type": "string"},
                "started_at": {"type": "string"},
                "ended_at": {"type": "string"},
                "result": {"$ref": "#/definitions/model.ScanResult"}
            }
        },
        "model.ScanResult": {
            "type": "object",
            "properties": {
                "target": {
                    "type": "object",
                    "properties": {
                        "original_url": {"type": "string"},
                        "resolved_url": {"type": "string"},
                        "was_shortened": {"type": "boolean"},
                        "note": {"type": "string"}
                    }
                },
                "reputation": {
                    "type": "object",
                    "properties": {
                        "stats": {
                            "type": "object",
                            "properties": {
                                "malicious": {"type": "integer"},
                                "suspicious": {"type": "integer"},
                                "harmless": {"type": "integer"},
                                "undetected": {"type": "integer"}
                            }
                        },
                        "scan_id": {"type": "string"},
                        "analysis_id": {"type": "string"},
                        "attempts": {"type": "integer"}
                    }
                },
                "sandbox": {
                    "type": "object",
                    "properties": {
                        "screenshot_url": {"type": "string"},
                        "country": {"type": "string"},
                        "ip": {"type": "string"},
                        "server": {"type": "string"},
                        "scan_uuid": {"type": "string"}
                    }
                },
                "phishing": {
                    "type": "object",
                    "properties": {
                        "detected": {"type": "boolean"},
                        "brand_name": {"type": "string"},
                        "brand_localized_name": {"type": "string"},
                        "impersonated_domain": {"type": "string"},
                        "legitimate_domains": {"type": "array", "items": {"type": "string"}},
                        "reason": {"type": "string"},
                        "localized_reason": {"type": "string"},
                        "severity": {"type": "string", "enum": ["low", "medium", "high"]}
                    }
                },
                "verdict": {"type": "string", "enum": ["SAFE", "WARNING", "DANGER", "UNKNOWN"]}
            }
        },
        "health.ServiceStatus": {
            "type": "object",
            "properties": {
                "status": {"type": "string", "enum": ["online", "error", "offline"]},
                "latency": {"type": "integer"},
                "message": {"type": "string"}
            }
        },
        "health.Report": {
            "type": "object",
            "properties": {
                "virustotal": {"$ref": "#/definitions/health.ServiceStatus"},
                "urlscan": {"$ref": "#/definitions/health.ServiceStatus"},
                "unshorten": {"$ref": "#/definitions/health.ServiceStatus"},
                "checked_at": {"type": "string"}
            }
        },
        "server.StartScanRequest": {
            "type": "object",
            "properties": {
                "url": {"type": "string", "example": "https://bit.ly/3xyz"}
            }
        },
        "server.ErrorResponse": {
            "type": "object",
            "properties": {
                "error": {"type": "string", "example": "job not found"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "0.1",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "LinkGuard API",
	Description:      "Submit links for URL-safety scanning and follow their progress.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
