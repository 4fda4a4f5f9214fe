package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateQuote     OutboxAggregateType = "quote"
	AggregatePartsList OutboxAggregateType = "parts_list"
	AggregateReviewJob OutboxAggregateType = "review_job"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateQuote,
	AggregatePartsList,
	AggregateReviewJob,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a durable domain event.
type OutboxEventType string

const (
	EventQuoteCreated           OutboxEventType = "quote_created"
	EventQuoteUpdated           OutboxEventType = "quote_updated"
	EventQuoteItemsReplaced     OutboxEventType = "quote_items_replaced"
	EventPartsListItemsReplaced OutboxEventType = "parts_list_items_replaced"
	EventReviewCompleted        OutboxEventType = "review_completed"
	EventReviewFailed           OutboxEventType = "review_failed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventQuoteCreated,
	EventQuoteUpdated,
	EventQuoteItemsReplaced,
	EventPartsListItemsReplaced,
	EventReviewCompleted,
	EventReviewFailed,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
