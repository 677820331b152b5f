// Package middleware provides HTTP middleware for the annotator server.
//
// Logger writes W3C Extended Log Format access lines and can leave out
// health probes and raw image fetches. Metrics records Prometheus request
// metrics keyed by mux route template. Compression gzips JSON responses,
// which matters for delta batches carrying base64 image payloads.
package middleware
