// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for courier
// binaries.
//
// Configuration is loaded from a single file named by either the
// COURIER_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There is no automatic file search; [Resolve] falls
// back to the built-in defaults when neither is given.
//
// The file may contain development and production sections that
// override base values when [Config].Environment matches. Production
// defaults log at info rather than debug.
//
// ${HOME}, ${COURIER_STATE}, and ${VAR:-default} patterns are expanded
// in address and path fields after loading.
package config
