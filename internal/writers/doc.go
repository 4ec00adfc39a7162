// Package writers holds output plumbing shared by the mapping front ends.
//
// Design:
//   • Record output (SAM) lives in internal/output; this package carries
//     the side channels, such as the per-job JSONL stats stream.
//   • JSON/JSONL go through pkg/api (v1) for a stable wire format.
//   • Broken pipes on stdout are a normal way for a reader to stop.
package writers
