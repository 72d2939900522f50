package session

// SnapshotSchema is the JSON Schema every snapshot file must satisfy
const SnapshotSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": {
    "type": "object",
    "required": ["manual"],
    "properties": {
      "manual": {
        "type": "string",
        "description": "Generated manual test cases"
      },
      "created_at": {
        "type": "string"
      }
    }
  }
}`
