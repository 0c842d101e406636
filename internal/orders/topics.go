package orders

const (
	TopicOrderCreated     = "order.created"
	TopicOrderPaid        = "order.paid"
	TopicPaymentFailed    = "order.payment.failed"
	TopicOrderReady       = "order.ready"
	TopicOrderAssigned    = "order.assigned"
	TopicDeliveryProgress = "order.delivery"
	TopicOrderCompleted   = "order.completed"
	TopicOrderCanceled    = "order.canceled"
)

// Partition key = order_id so every event of one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
