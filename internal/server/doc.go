// Package server implements the HTTP side of pullhook.
//
// Routes:
//   - POST /webhook: authenticate a push notification, filter it by branch,
//     synchronise the checkout and touch the watched files
//   - GET /health: liveness and non-secret configuration
//   - GET /status: recent deliveries from the history database
//   - GET /metrics: Prometheus metrics
//
// The webhook answers only after the sync has finished, with a plain-text
// message: 200 on success or when the push is ignored, 403 on a bad
// signature, 500 with git's stderr when the sync fails. Deliveries for the
// same checkout are serialised by the deployer's lock manager.
package server
