// Package memory keeps the streamer inside its container memory limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT and MEMORY_RATIO
// when GOMEMLIMIT itself is not set:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// A [Monitor] samples the heap and runs the functions registered with
// [Monitor.OnPressure] when usage crosses the high water mark. The
// transcode cache registers its Purge there, since it holds complete
// transcoder outputs in memory.
package memory
