package worker

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// extractKey pulls the state-partitioning key out of an event's JSON
// payload at keyField. An empty keyField, a payload that isn't a JSON
// object, or a missing/non-string field all resolve to "" — callers treat
// that as "do not load state", logging a warning only when keyField was
// actually supposed to produce something.
func extractKey(payload []byte, keyField string, log *zap.Logger) string {
	if keyField == "" {
		return ""
	}

	var fields map[string]any
	if err := json.Unmarshal(payload, &fields); err != nil {
		log.Warn("event payload is not a JSON object, proceeding without state", zap.String("key_field", keyField))
		return ""
	}

	v, ok := fields[keyField]
	if !ok {
		log.Warn("key_field missing from event payload, proceeding without state", zap.String("key_field", keyField))
		return ""
	}
	s, ok := v.(string)
	if !ok {
		log.Warn("key_field is not a string in event payload, proceeding without state", zap.String("key_field", keyField))
		return ""
	}
	return strings.TrimSpace(s)
}
