// Package hcl provides the HCL implementation of config.Loader. It parses
// workflow files, decodes `backend` and `target` blocks and translates them
// into the format-agnostic config.Model.
package hcl
