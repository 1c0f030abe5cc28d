package importer

// importSchema bounds every field of an import payload so arbitrary external
// JSON (file upload or cloud restore) cannot smuggle unbounded data in.
// Unknown extra fields are allowed on purpose: forward compatibility.
const importSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "version":   {"type": "number", "minimum": 0, "maximum": 1000},
    "timestamp": {"type": "number", "minimum": 0},
    "tasks":     {"type": "array", "maxItems": 5000, "items": {"$ref": "#/definitions/ticket"}},
    "settings":  {"$ref": "#/definitions/settings"},
    "templates": {"type": "array", "maxItems": 500, "items": {"$ref": "#/definitions/template"}},
    "bgHistory": {"type": "array", "maxItems": 100, "items": {"type": "string", "maxLength": 2048}}
  },
  "definitions": {
    "ticket": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id":            {"type": "string", "minLength": 1, "maxLength": 128},
        "productName":   {"type": "string", "maxLength": 200},
        "serial":        {"type": "string", "maxLength": 4096},
        "barcodeFormat": {"type": "string", "maxLength": 32},
        "expiry":        {"type": "string", "maxLength": 32},
        "image":         {"type": "string", "maxLength": 4000000},
        "originalImage": {"type": "string", "maxLength": 4000000},
        "images":        {"type": "array", "maxItems": 10, "items": {"type": "string", "maxLength": 4000000}},
        "tags":          {"type": "array", "maxItems": 50, "items": {"type": "string", "maxLength": 64}},
        "redeemUrl":     {"type": "string", "maxLength": 2048},
        "completed":     {"type": "boolean"},
        "isDeleted":     {"type": "boolean"},
        "createdAt":     {"type": "number", "minimum": 0},
        "completedAt":   {"type": "number", "minimum": 0},
        "deletedAt":     {"type": "number", "minimum": 0}
      }
    },
    "template": {
      "type": "object",
      "required": ["id", "name"],
      "properties": {
        "id":          {"type": "string", "minLength": 1, "maxLength": 128},
        "name":        {"type": "string", "minLength": 1, "maxLength": 100},
        "productName": {"type": "string", "maxLength": 200},
        "image":       {"type": "string", "maxLength": 4000000},
        "tags":        {"type": "array", "maxItems": 50, "items": {"type": "string", "maxLength": 64}},
        "serial":      {"type": "string", "maxLength": 4096},
        "expiry":      {"type": "string", "maxLength": 32},
        "redeemUrl":   {"type": "string", "maxLength": 2048},
        "createdAt":   {"type": "number", "minimum": 0}
      }
    },
    "viewConfig": {
      "type": "object",
      "properties": {
        "background":  {"type": "string", "maxLength": 4000000},
        "cardColor":   {"type": "string", "maxLength": 32},
        "cardOpacity": {"type": "number", "minimum": 0, "maximum": 1},
        "textColor":   {"type": "string", "maxLength": 32}
      }
    },
    "settings": {
      "type": "object",
      "properties": {
        "notifyDays": {"type": "integer", "minimum": 0, "maximum": 365},
        "appTitle":   {"type": "string", "maxLength": 100},
        "views": {
          "type": "object",
          "maxProperties": 16,
          "additionalProperties": {"$ref": "#/definitions/viewConfig"}
        },
        "telegram": {
          "type": "object",
          "properties": {
            "enabled":  {"type": "boolean"},
            "botToken": {"type": "string", "maxLength": 128},
            "chatId":   {"type": "integer"}
          }
        },
        "cloudBackup": {
          "type": "object",
          "properties": {
            "url":      {"type": "string", "maxLength": 2048},
            "folder":   {"type": "string", "maxLength": 128},
            "filename": {"type": "string", "maxLength": 128},
            "auto":     {"type": "boolean"}
          }
        }
      }
    }
  }
}`
