/*
Package metrics provides Prometheus instrumentation for the generation
pipeline: submissions, poll attempts, terminal outcomes, artifact cost,
and upload fallbacks.

Collector registers its vectors through promauto under a configurable
namespace. Every Record method is safe to call on the hot polling path.
*/
package metrics
