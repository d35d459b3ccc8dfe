package orders

const (
	TopicImageJobs = "order.image.jobs"
	// Jobs that exhausted their retries end up here.
	TopicImageJobsDLQ = TopicImageJobs + ".dlq"
)

// Partition key = order_id, so redeliveries of one order stay on one partition.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
