// An adaptive governor for outbound calls to strict, rate-limited external APIs.
//
// Features:
//
// - Sliding window throttling over the exact timestamps of recent calls for a smooth, precise ceiling
//
// - Exponential back-off with saturating escalation when the remote API explicitly rejects a call
//
// - Retry-After hints from the server override the computed penalty for the immediate wait
//
// - Random jitter on every call, drawn from a non-seedable source, to desynchronize concurrent callers after a shared stall
//
// - Guard adapters to wrap arbitrary call sites and translate detected rejections into a typed error
//
// - Context-aware waits: a caller abandoning its own operation is never forced to sit out a stale penalty
//
// - Runtime statistics for observability
//
// - Thread safe
package governor
