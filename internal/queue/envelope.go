package queue

import (
	"encoding/json"
	"fmt"

	"contentpipeline/internal/domain"
)

// ValidateEnvelope checks the outer envelope shape before a consumer spends
// any further work on the message: operation must be non-empty and match
// one of the expected values for the queue being consumed.
func ValidateEnvelope(env domain.Envelope, expectedOperations ...string) error {
	if env.Operation == "" {
		return &domain.ValidationError{Field: "operation", Reason: "missing"}
	}
	if env.ServiceName == "" {
		return &domain.ValidationError{Field: "service_name", Reason: "missing"}
	}
	if env.CorrelationID == "" {
		return &domain.ValidationError{Field: "correlation_id", Reason: "missing"}
	}
	if env.Payload == nil {
		return &domain.ValidationError{Field: "payload", Reason: "missing"}
	}
	if len(expectedOperations) == 0 {
		return nil
	}
	for _, op := range expectedOperations {
		if env.Operation == op {
			return nil
		}
	}
	return &domain.ValidationError{Field: "operation", Reason: fmt.Sprintf("unexpected value %q", env.Operation)}
}

// ValidateTopicPayload checks that a process_topic envelope's payload
// contains every field TopicMessage requires, before a processor claims a
// lease on the strength of it. Unknown fields are tolerated.
func ValidateTopicPayload(payload map[string]any) error {
	required := []string{"topic_id", "title", "source", "collected_at", "priority_score", "collection_id", "collection_blob"}
	for _, field := range required {
		v, ok := payload[field]
		if !ok || v == nil {
			return &domain.ValidationError{Field: field, Reason: "missing required field"}
		}
	}
	if s, ok := payload["topic_id"].(string); !ok || s == "" {
		return &domain.ValidationError{Field: "topic_id", Reason: "must be a non-empty string"}
	}
	if s, ok := payload["title"].(string); !ok || s == "" {
		return &domain.ValidationError{Field: "title", Reason: "must be a non-empty string"}
	}
	return nil
}

// DecodeTopicMessage decodes a validated payload map into a TopicMessage.
func DecodeTopicMessage(payload map[string]any) (domain.TopicMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return domain.TopicMessage{}, fmt.Errorf("%w: re-marshal payload: %v", domain.ErrValidation, err)
	}
	var msg domain.TopicMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.TopicMessage{}, fmt.Errorf("%w: decode topic message: %v", domain.ErrValidation, err)
	}
	return msg, nil
}

// EncodeEnvelope serializes an envelope for transport over Redis Streams
// (a single "data" field holding the JSON-encoded envelope).
func EncodeEnvelope(env domain.Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return b, nil
}

// DecodeEnvelope parses the JSON-encoded envelope back out.
func DecodeEnvelope(b []byte) (domain.Envelope, error) {
	var env domain.Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return domain.Envelope{}, fmt.Errorf("%w: decode envelope: %v", domain.ErrValidation, err)
	}
	return env, nil
}
