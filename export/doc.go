/*
Package export implements the telemetry export pipeline.

# Overview

The pipeline accepts finished spans and log records from the tracer and
correlator, buffers them in bounded batches and ships them to an OTLP
collector over gRPC or HTTP/protobuf. Its lifecycle is a strict state
machine:

	Uninitialized -> Configured -> Running -> Draining -> Stopped

New validates configuration and builds the transport (Configured).
Start launches the background flush task (Running). Shutdown performs a
final bounded flush and releases the transport (Draining, Stopped).

# Delivery semantics

Enqueue operations never block and never fail the caller. Batches flush
on a timer or when the batch-size threshold is reached, whichever comes
first. Transient transport failures are retried with exponential
backoff up to a configured attempt cap; exhausted batches are dropped
and counted as lost. A circuit breaker sits in front of the transport
so a dead collector does not consume the retry budget on every flush.

Backpressure policy is drop-new: when a buffer is full the incoming
record is discarded and telemetry_records_dropped_total is incremented.

# Observability

The pipeline reports its own health through prometheus counters
(records enqueued, exported, dropped, retries, lost batches) and an
optional console echo that mirrors records to stdout as JSON lines.
*/
package export
