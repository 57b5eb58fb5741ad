//go:build purego || !sqlite_vec
// +build purego !sqlite_vec

package storage

// This file is compiled when building without CGO or with the purego tag.
// It uses a pure Go SQLite implementation with a Go-side cosine scan over
// edge embeddings instead of a SQL-side one.
//
// Build command:
//   CGO_ENABLED=0 go build -tags "purego" ./...
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use.
	DriverName = "sqlite"

	// VectorExtensionAvailable reports the build's driver choice only;
	// EdgeVectorSearch does not read it and always scans in Go.
	VectorExtensionAvailable = false

	// BuildMode describes the current build configuration.
	BuildMode = "purego"
)
