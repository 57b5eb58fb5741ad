//go:build sqlite_vec
// +build sqlite_vec

package storage

// This file is compiled when building with CGO and the sqlite_vec tag. It
// enables the cgo SQLite driver. EdgeVectorSearch still scores edge
// embeddings with the Go-side cosine scan in this build.
//
// Build command:
//   CGO_ENABLED=1 go build -tags "sqlite_vec,fts5" ./...
//
// Driver used: github.com/mattn/go-sqlite3

import (
	_ "github.com/mattn/go-sqlite3"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite3"

	// VectorExtensionAvailable reports the build's driver choice only;
	// EdgeVectorSearch does not read it and always scans in Go.
	VectorExtensionAvailable = true

	// BuildMode describes the current build configuration.
	BuildMode = "cgo"
)
