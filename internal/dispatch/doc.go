// Package dispatch pushes durable notifications to connected WebSocket
// clients and routes their acknowledgments back into the store.
//
// Delivery is polling-driven: a fixed-interval tick queries the store for
// due messages and attempts one send per message. An offline client is
// treated exactly like a transmission error - both land in the store's
// backoff path. A successful send does not remove the message; only a
// client ACK does, so a slow-acking client will see duplicates. Consumers
// of delivered payloads must be idempotent.
package dispatch
