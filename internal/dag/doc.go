// Package dag builds the dependency graph of a workflow's targets.
//
// Edges come from two sources: explicit `depends_on` lists, and implicit
// links where one target lists as input a file another target produces.
// The graph only answers ordering questions; submission is driven by the app.
package dag
