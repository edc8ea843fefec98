package orders

const (
	TopicOrderPlaced = "order.placed"
)

// Partition key = checkout batch id, so all events of one checkout keep order.
func PartitionKey(id string) []byte { return []byte(id) }
