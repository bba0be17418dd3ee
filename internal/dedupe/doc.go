// Package dedupe remembers recently seen keys for a fixed window so that a
// message relayed between nodes is delivered at most once per node.
package dedupe
