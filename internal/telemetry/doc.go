// Package telemetry provides OpenTelemetry instrumentation for focusd.
//
// Traces and push metrics go to an OTLP collector (grpc or http/protobuf) or,
// for local debugging, to a pretty-printed stdout exporter written to stderr.
// Independently, a Prometheus pull reader backs the HTTP /metrics endpoint.
//
//	tel, err := telemetry.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	tracer := tel.Tracer("focusd/batch")
//	ctx, span := tracer.Start(ctx, "batch.execute")
//	defer span.End()
//
// Tests use NewTestTelemetry, which records spans in memory and reads metrics
// through a manual reader.
package telemetry
