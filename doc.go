// Package execengine implements a two-layer execution engine for running
// dependency-ordered work.
//
// The lower layer, Scheduler, dispatches external command invocations
// subject to a configurable concurrency cap and named-dependency wait
// conditions. The upper layer, Pipeline, groups PipelineTask values (each
// producing zero or more commands plus init/setup/finish logic) into a DAG,
// routes them through a Scheduler, propagates outputs across edges, and
// halts downstream work on failure.
package execengine
