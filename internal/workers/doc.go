/*
Package workers sizes worker pools from GOMAXPROCS, so counts follow
container CPU limits rather than the host's CPU count.

	n := workers.ForMixed("INDEX_WORKERS", 8)

The multiplier picks the workload type: 1.0 per CPU for CPU-bound work,
2.0 for I/O-bound work and 1.5 for mixed work such as probing files over
NFS with ffprobe. A positive integer in the named environment variable
overrides the computed count; the limit still applies.
*/
package workers
