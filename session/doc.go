// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package session discovers and manages loom sessions.
//
// A session is visible in two places, and the [Registry] recomputes its
// view from both on every call rather than keeping state of its own:
//
//   - The socket directory holds one Unix socket per live session,
//     named after the session. A socket only counts as live if its
//     server answers the liveness handshake (ConnStatus, expecting
//     Connected). A socket that refuses connections belongs to a server
//     that died without cleaning up; the probe removes it.
//
//   - The layout cache directory holds one subdirectory per session
//     whose layout was cached. A session whose subdirectory contains a
//     non-empty layout file but which has no live socket is
//     resurrectable: attaching to it starts a new server from the
//     cached layout.
//
// When a name appears in both places the live entry wins.
//
// Name resolution ([ResolvePrefix]) always prefers an exact match over
// prefix matches, so a session named "dev" stays reachable when "devops"
// also exists. New names come from [GenerateName], which combines an
// adjective and a noun and avoids every live and resurrectable name.
package session
