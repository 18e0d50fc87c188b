// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines FSInfo, which ties a parsed target back to the workflow
// file it was declared in so that validation errors can name the file.
package model

type FSInfo struct {
	FilePath string
}

func NewFSInfo(filePath string) *FSInfo {
	return &FSInfo{
		FilePath: filePath,
	}
}

// String returns the file path, or a placeholder for targets built in code.
func (i *FSInfo) String() string {
	if i == nil || i.FilePath == "" {
		return "<unknown>"
	}
	return i.FilePath
}
