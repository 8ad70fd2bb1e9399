package observability

type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// EventTypeName lets publishers type the message without knowing the envelope.
func (e EventEnvelope) EventTypeName() string { return e.EventType }

func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// WSEvent builds the payload published for websocket lifecycle changes.
func WSEvent(scope string, resourceID int, event, connID string, durationMS int64, reason string, userID int) EventEnvelope {
	return EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload: map[string]interface{}{
			"ws": map[string]interface{}{
				"scope":       scope,
				"resource_id": resourceID,
				"event":       event,
				"conn_id":     connID,
				"duration_ms": durationMS,
				"reason":      reason,
			},
			"identity": map[string]interface{}{
				"user_id": userID,
			},
		},
	}
}
