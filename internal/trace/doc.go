// Package trace records compilation stages and optimisation passes.
//
// Enable tracing from the command line:
//
//	swayc build --trace=- --trace-level=pass prog.yaml
//
// Tracer implementations:
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer kept for crash dumps
//   - Fanout: sends events to several tracers
//
// Scopes, from coarse to fine: ScopeDriver (CLI command), ScopeStage
// (pipeline stage such as irgen or finalize), ScopePass (one optimisation
// pass over the module) and ScopeFunction (one function inside a stage).
//
// Tracers travel through the pipeline in the context:
//
//	ctx = trace.WithTracer(ctx, tracer)
//	ctx, span := trace.Start(ctx, trace.ScopeStage, "irgen")
//	defer span.End("")
package trace
