// Package config defines the format-agnostic workflow model: the targets to
// run and the settings of the backend that runs them, along with the Loader
// interface that format-specific packages (such as hcl) implement.
//
// A Model is finalized in three passes, applyDefaults, normalize and
// validate, before the app uses it.
package config
