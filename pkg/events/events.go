// Package events defines the structure for events that are sent to Kafka.
package events

// InteractionEvent represents an analytics event emitted by the chat and
// catalog paths and consumed by the analytics pipeline.
type InteractionEvent struct {
	EventID        string                 `json:"event_id"`
	RestaurantID   string                 `json:"restaurant_id"`
	ConversationID string                 `json:"conversation_id,omitempty"`
	EventType      string                 `json:"event_type"`
	EventData      map[string]interface{} `json:"event_data,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
	IPAddress      string                 `json:"ip_address,omitempty"`
}
