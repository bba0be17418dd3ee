// Package gateway orchestrates the pairchat server components.
//
// # Overview
//
// The gateway owns every long-lived component and their lifecycle: the store,
// the chat hub (guard, registry and router), the websocket server, the
// optional Redis relay and the HTTP server.
//
// # Wiring
//
//	store    := OpenStore(cfg)                    // sqlite or postgres
//	guard    := chat.NewGuard(store)
//	registry := chat.NewRegistry(guard)
//	fanout   := chat.NewFanOut()                  // or relay.New(..., fanout, registry)
//	router   := chat.NewRouter(guard, registry, store, fanout)
//	hub      := chat.NewHub(registry, router)
//	ws       := realtime.NewServer(hub)
//
// The registry is created once and injected into both the router and the
// relay, so local and relayed deliveries see the same membership.
//
// # HTTP Routes
//
//   - GET /health: store reachability, connection and membership counts (no auth)
//   - GET /ws: websocket upgrade (bearer token or access_token query parameter)
//   - GET /api/conversations/:id/messages: history for participants, paged by after_id
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	err = gw.Run(ctx)   // blocks until ctx is canceled
//
// On shutdown open websocket sessions are closed first, which removes them
// from every membership set, then the HTTP server, relay and store are
// released.
package gateway
