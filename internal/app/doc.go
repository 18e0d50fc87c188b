// Package app contains the application logic behind the command line: it
// loads the workflow, builds the dependency graph, constructs the Grid Engine
// backend and implements the submit, status, cancel, forget and serve
// commands on top of it.
package app
