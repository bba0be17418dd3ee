// Package relay extends message fan-out across gateway nodes using Redis
// pub/sub.
//
// Each accepted message is delivered to local connections first and then
// queued for publishing on "<prefix><conversationId>". A single publisher
// goroutine drains the queue, so a slow or unreachable Redis never holds up
// the conversation lock. When the queue is full the publish is dropped and
// remote members recover the message from history.
//
// Every node pattern-subscribes to "<prefix>*" and hands events from other
// nodes to its own members of that conversation. Events carry the origin node
// id, and a dedupe window keyed by conversation and message id keeps a node
// from delivering the same message twice.
//
// Messages stored through one node reach remote connections in storage order,
// since that node enqueues under the conversation lock, publishes in queue
// order and one subscription receives in publish order. Messages stored
// concurrently through different nodes can reach a remote connection in either
// order; clients reorder by id.
package relay
