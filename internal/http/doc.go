// Package http provides the JSON API and middleware of the studio scheduler.
//
// The router exposes the following endpoints:
//   - GET /sessions?from=YYYY-MM-DD&to=YYYY-MM-DD, POST /sessions, GET /sessions/{id}:
//     session listing and creation exchanging the `sessionDTO` payload defined in
//     session_handler.go. Creation answers 409 with the blocking conflicts and
//     alternatives when the slot has hard conflicts.
//   - POST /sessions/{id}/check: evaluates a placement without writing it and
//     returns a `checkResultDTO`.
//   - POST /sessions/{id}/move: moves a session with optimistic concurrency. The
//     body carries `expected_version`; a stale version answers 409 with
//     error_code CONCURRENT_UPDATE.
//   - GET /buffers?from&to: derived buffer zones around the sessions in range.
//   - GET /trainers, PUT /trainers/{id}, GET /trainers/{id}: trainer profiles.
//   - GET|PUT /trainers/{id}/availability, GET|PUT|PATCH /trainers/{id}/availability/grid,
//     POST /trainers/{id}/overrides, DELETE /trainers/{id}/overrides/{overrideID},
//     DELETE /overrides?before=YYYY-MM-DD, GET /trainers/{id}/calendar?from&to:
//     recurring schedules, date overrides and their expansion into dated windows.
//   - POST /gestures, GET /gestures/{id}, POST /gestures/{id}/hover,
//     POST /gestures/{id}/drop, DELETE /gestures/{id}: server hosted drag
//     gestures returning the `previewDTO` render state.
//
// When rate limiting is configured, requests over the limit answer 429 with
// error_code RATE_LIMITED. CORS headers are only emitted for configured origins.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
