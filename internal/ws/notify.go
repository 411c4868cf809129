package ws

import (
	"encoding/json"
	"time"

	"feedsync/internal/domain/listing"
)

type ListingsUpdatedEvent struct {
	Type      string       `json:"type"`
	Kind      listing.Kind `json:"kind"`
	Found     int          `json:"found"`
	Added     int          `json:"added"`
	Updated   int          `json:"updated"`
	Timestamp string       `json:"timestamp"`
}

const TypeListingsUpdated = "listings_updated"

// NotifyListingsUpdated tells connected clients that a persist changed
// stored listings of kind.
func (h *Hub) NotifyListingsUpdated(kind listing.Kind, found, added, updated int) {
	if h == nil {
		return
	}
	evt := ListingsUpdatedEvent{
		Type:      TypeListingsUpdated,
		Kind:      kind,
		Found:     found,
		Added:     added,
		Updated:   updated,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return
	}
	h.publish(kind, b)
}
