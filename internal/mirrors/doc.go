// package mirrors measures the latency of candidate API hosts and keeps them ranked.
//
// A [Ranker] probes every configured host directly, retries the failures through a
// relay, and publishes a sorted snapshot that the dispatcher walks in order. Hosts
// that fail both ways are kept in the snapshot as [Unreachable] but are never handed
// out as usable.
package mirrors
