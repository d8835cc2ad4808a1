// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for loom.
//
// [Default] returns a complete configuration that works with no file at
// all. [Load] overlays the file named by LOOM_CONFIG when that variable
// is set; [LoadFile] overlays an explicit path (the --config flag).
// Other environment variables never override loaded values.
//
// Path fields support ${VAR} and ${VAR:-default} expansion after
// loading, so a shared config can say
//
//	paths:
//	  socket_dir: ${XDG_RUNTIME_DIR:-/tmp}/loom
//
// Duration fields accept Go duration strings ("50ms", "1s").
//
// This package depends on no other loom packages.
package config
