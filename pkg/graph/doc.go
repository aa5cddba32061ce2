// Package graph stores operation nodes in an arena and provides the passes
// that work on whole graphs: hash-consing insertion (Builder), traversal,
// rewriting by cloning, dead-node pruning and validation.
package graph
