// Package stages provides ready-made processing stages for pipelines of
// *record.Record: a JavaScript transform backed by goja, string operations
// on record payloads, and an OpenTelemetry tracing wrapper for arbitrary
// mappers.
package stages
