// Package memory sizes the Go heap for containers and watches it at run
// time.
//
// # Configuration
//
// Call [ConfigureFromEnv] early in main. It reads:
//
//   - GOMEMLIMIT: standard Go variable, takes precedence when set.
//   - MEMORY_LIMIT: container limit in bytes.
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.85).
//
// MEMORY_LIMIT is typically injected through the Kubernetes Downward API:
//
//	env:
//	  - name: MEMORY_LIMIT
//	    valueFrom:
//	      resourceFieldRef:
//	        resource: limits.memory
//
// # Monitoring
//
// A [Monitor] samples heap allocation against the limit. Above the high
// water mark it reports ShouldThrottle, which prefetch sessions use to load
// only the item under the cursor until usage falls again. Cached entries
// hold whole images as base64 text, so read-ahead is the first thing to
// give up under pressure.
package memory
