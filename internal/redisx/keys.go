package redisx

import "time"

const (
	// Idempotency create order: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Last known courier position: courier_loc:{order_id} -> {"lat":..,"lon":..,"updated_at":..}
	KeyCourierLocation = "courier_loc:%s"

	// Scheduler job lock: lock:{job} -> holder token
	KeyJobLock = "lock:%s"
)

var (
	TTLIdempotency     = 24 * time.Hour
	TTLStatusCache     = 5 * time.Minute
	TTLCourierLocation = 30 * time.Minute
)
