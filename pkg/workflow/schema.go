package workflow

// configSchema is the JSON schema applied to configuration files before
// decoding. Struct-tag validation and cross-checks refine it after decode.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["providers", "workflows"],
  "properties": {
    "providers": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["name", "type"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "type": {"type": "string", "minLength": 1},
          "ttl_ms": {"type": "integer", "minimum": 0},
          "pruning": {
            "type": "object",
            "required": ["mode"],
            "properties": {
              "mode": {"enum": ["fixed-window", "filter-tag", "none"]},
              "window": {"type": "integer", "minimum": 0},
              "tag": {"type": "string"},
              "cap": {"type": "integer", "minimum": 0}
            }
          },
          "config": {"type": "object"}
        }
      }
    },
    "workflows": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["intent", "steps"],
        "properties": {
          "intent": {"type": "string", "minLength": 1},
          "description": {"type": "string"},
          "steps": {
            "type": "array",
            "minItems": 1,
            "items": {
              "type": "object",
              "required": ["provider", "action"],
              "properties": {
                "provider": {"type": "string", "minLength": 1},
                "action": {"type": "string", "minLength": 1},
                "parallel": {"type": "boolean"},
                "visibility": {"enum": ["public", "internal"]},
                "conditions": {
                  "type": "array",
                  "items": {
                    "type": "object",
                    "required": ["kind"],
                    "properties": {
                      "kind": {
                        "enum": [
                          "always",
                          "step-succeeded",
                          "step-failed",
                          "output-contains",
                          "min-confidence"
                        ]
                      },
                      "provider": {"type": "string"},
                      "field": {"type": "string"},
                      "substring": {"type": "string"},
                      "threshold": {"type": "integer", "minimum": 0, "maximum": 100}
                    }
                  }
                }
              }
            }
          }
        }
      }
    },
    "router": {
      "type": "object",
      "properties": {
        "provider": {"type": "string"},
        "default_intent": {"type": "string"},
        "keywords": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["intent", "keywords"],
            "properties": {
              "intent": {"type": "string", "minLength": 1},
              "keywords": {
                "type": "array",
                "minItems": 1,
                "items": {"type": "string"}
              }
            }
          }
        }
      }
    }
  }
}`
