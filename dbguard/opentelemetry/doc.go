// Package opentelemetry provides small helpers for recording errors on spans.
//
// The guardian emits spans through the OpenTelemetry API only; provider and
// exporter wiring belongs to the hosting process.
package opentelemetry
