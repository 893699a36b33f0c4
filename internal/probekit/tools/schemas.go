package tools

import "encoding/json"

// Input schemas for the built-in tools. Compiled by the registry at
// registration; a schema that fails to compile is a startup error.
var (
	apiRequestSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"sessionId": {"type": "string"},
			"method": {"type": "string", "enum": ["GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"]},
			"url": {"type": "string", "minLength": 1},
			"headers": {"type": "object", "additionalProperties": {"type": "string"}},
			"body": {"type": "string"},
			"timeoutMs": {"type": "integer", "minimum": 1},
			"extract": {"type": "string"}
		},
		"required": ["method", "url"],
		"additionalProperties": false
	}`)

	sessionIDSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"sessionId": {"type": "string", "minLength": 1}
		},
		"required": ["sessionId"],
		"additionalProperties": false
	}`)

	apiSessionReportSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"sessionId": {"type": "string", "minLength": 1},
			"format": {"type": "string", "enum": ["json", "text"]},
			"theme": {"type": "string", "enum": ["plain", "ansi"]},
			"redactHeaders": {"type": "array", "items": {"type": "string"}},
			"save": {"type": "boolean"}
		},
		"required": ["sessionId"],
		"additionalProperties": false
	}`)

	browserNavigateSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {"type": "string", "minLength": 1},
			"waitUntil": {"type": "string", "enum": ["load", "domcontentloaded", "networkidle"]},
			"timeoutMs": {"type": "number", "minimum": 1}
		},
		"required": ["url"],
		"additionalProperties": false
	}`)

	browserScreenshotSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"fullPage": {"type": "boolean"},
			"selector": {"type": "string"}
		},
		"additionalProperties": false
	}`)

	browserDOMSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"selector": {"type": "string"},
			"save": {"type": "boolean"}
		},
		"additionalProperties": false
	}`)
)
