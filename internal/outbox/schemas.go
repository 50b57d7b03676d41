package outbox

const rowSavedSchema = `{
  "type": "object",
  "title": "IPMTRowSaved",
  "properties": {
    "row_id": {"type": "string"},
    "personnel_id": {"type": "string"},
    "unit_id": {"type": "string"},
    "month": {"type": "string"},
    "indicator_id": {"type": "string"},
    "indicator_code": {"type": "string"},
    "accomplishment": {"type": "string"},
    "remarks": {"type": "string"},
    "record_ids": {"type": "array", "items": {"type": "string"}},
    "saved_at": {"type": "string", "format": "date-time"}
  },
  "required": ["row_id", "personnel_id", "unit_id", "month", "indicator_id", "indicator_code", "accomplishment", "saved_at"],
  "additionalProperties": false
}`
