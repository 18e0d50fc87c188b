// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// Package model provides the Go representation of a workflow target, the unit
// of work that the backend turns into one Grid Engine job.
//
// # Core Concepts
//
//   - Target: a named shell script plus the resources it asks for, the
//     directory it runs in, and the files it reads and writes.
//
//   - Option: one resource request (cores, memory, walltime, queue, account).
//     Options are kept as an ordered slice rather than a map so that the
//     generated job script is byte-for-byte reproducible. Values are cty
//     values because they come straight out of an HCL workflow file and the
//     script compiler validates their types itself.
//
// Why a separate model package?
//
// The backend, the script compiler, and the HCL loader all speak about
// targets, but none of them owns the concept. Keeping the struct here lets the
// loader build targets without importing the backend, and lets the backend be
// driven by any front-end that can produce a Target.
package model
