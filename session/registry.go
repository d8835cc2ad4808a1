// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/bureau-foundation/loom/lib/clock"
	"github.com/bureau-foundation/loom/lib/ipc"
	"github.com/bureau-foundation/loom/lib/netutil"
	"github.com/bureau-foundation/loom/transport"
)

var (
	// ErrExists is returned by CheckNewName for a name that is live.
	ErrExists = errors.New("session already exists")

	// ErrResurrectable is returned by CheckNewName for a name that is
	// dead but still has a cached layout.
	ErrResurrectable = errors.New("session exists but is dead")

	// ErrActive is returned by CheckDeletable for a live session when
	// deletion is not forced.
	ErrActive = errors.New("session is active")
)

// Liveness is a session's state as seen by the registry.
type Liveness int

const (
	LivenessUnknown Liveness = iota
	Alive
	DeadResurrectable
)

func (l Liveness) String() string {
	switch l {
	case Alive:
		return "alive"
	case DeadResurrectable:
		return "dead_resurrectable"
	default:
		return "unknown"
	}
}

// Info describes one session.
type Info struct {
	Name string

	// SocketPath is where the session's server listens. Set for dead
	// sessions too: it is where a resurrected server will bind.
	SocketPath string

	// Created is when the socket was bound (live) or the layout was
	// cached (resurrectable).
	Created time.Time

	// Age is the time since Created when the view was computed.
	Age time.Duration

	Liveness Liveness
}

// Order selects the sort direction of a merged view.
type Order int

const (
	// OldestFirst lists the longest-running session first.
	OldestFirst Order = iota
	// NewestFirst lists the most recently created session first.
	NewestFirst
)

// Config locates the directories a Registry reads.
type Config struct {
	SocketDir    string
	CacheDir     string
	ProbeTimeout time.Duration
}

// Registry is a recomputed-on-demand view over the socket directory and
// the layout cache.
type Registry struct {
	socketDir    string
	layouts      *LayoutCache
	probeTimeout time.Duration
	dialer       transport.Dialer
	clock        clock.Clock
	logger       *slog.Logger

	randomMu sync.Mutex
	random   *rand.Rand
}

// NewRegistry returns a Registry dialing sessions with dialer.
func NewRegistry(config Config, dialer transport.Dialer, clock clock.Clock, logger *slog.Logger) *Registry {
	probeTimeout := config.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = time.Second
	}
	return &Registry{
		socketDir:    config.SocketDir,
		layouts:      NewLayoutCache(config.CacheDir),
		probeTimeout: probeTimeout,
		dialer:       dialer,
		clock:        clock,
		logger:       logger,
		random:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

// SetRandom replaces the source used for name generation.
func (r *Registry) SetRandom(random *rand.Rand) {
	r.randomMu.Lock()
	defer r.randomMu.Unlock()
	r.random = random
}

// Layouts returns the layout cache the registry reads.
func (r *Registry) Layouts() *LayoutCache { return r.layouts }

// SocketDir returns the socket directory.
func (r *Registry) SocketDir() string { return r.socketDir }

// SocketPath returns the socket path for name.
func (r *Registry) SocketPath(name string) string {
	return filepath.Join(r.socketDir, name)
}

// socketCandidate is a socket directory entry that follows the naming
// convention and is a socket.
type socketCandidate struct {
	name    string
	created time.Time
	mtime   time.Time
}

// candidates lists session sockets without probing them. A missing
// socket directory has no sessions.
func (r *Registry) candidates() ([]socketCandidate, error) {
	entries, err := os.ReadDir(r.socketDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading socket directory %s: %w", r.socketDir, err)
	}

	var candidates []socketCandidate
	for _, entry := range entries {
		if !isSessionSocketName(entry.Name()) || entry.Type()&os.ModeSocket == 0 {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and now.
			continue
		}
		candidates = append(candidates, socketCandidate{
			name:    entry.Name(),
			created: fileCreationTime(r.SocketPath(entry.Name()), info),
			mtime:   info.ModTime(),
		})
	}
	return candidates, nil
}

// ListLive returns every session whose socket answers the liveness
// handshake. Entries that are not sockets or do not follow the naming
// convention are skipped.
func (r *Registry) ListLive(ctx context.Context) ([]Info, error) {
	candidates, err := r.candidates()
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	var sessions []Info
	for _, candidate := range candidates {
		if !r.Probe(ctx, candidate.name) {
			continue
		}
		sessions = append(sessions, Info{
			Name:       candidate.name,
			SocketPath: r.SocketPath(candidate.name),
			Created:    candidate.created,
			Age:        nonNegative(now.Sub(candidate.created)),
			Liveness:   Alive,
		})
	}
	return sessions, nil
}

// ListLiveByModTime returns live session names ordered by socket
// modification time, least recent first.
func (r *Registry) ListLiveByModTime(ctx context.Context) ([]string, error) {
	candidates, err := r.candidates()
	if err != nil {
		return nil, err
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].mtime.Before(candidates[j].mtime)
	})
	var names []string
	for _, candidate := range candidates {
		if r.Probe(ctx, candidate.name) {
			names = append(names, candidate.name)
		}
	}
	return names, nil
}

// Probe performs the liveness handshake with the session called name.
// It never returns an error: any failure means not alive. A refused
// connection additionally removes the stale socket file.
func (r *Registry) Probe(ctx context.Context, name string) bool {
	path := r.SocketPath(name)
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	conn, err := r.dialer.DialContext(ctx, path)
	if err != nil {
		if netutil.IsConnectionRefused(err) {
			r.logger.Debug("removing stale session socket", "session", name, "path", path)
			_ = os.Remove(path)
		} else {
			r.logger.Debug("session probe failed", "session", name, "error", err)
		}
		return false
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	channel := ipc.NewClientChannel(conn, r.logger)
	if err := channel.Send(ipc.ConnStatus{}, ipc.ErrorContext{}.With("registry/probe")); err != nil {
		return false
	}
	reply, _, err := channel.Receive()
	if err != nil {
		r.logger.Debug("session probe got no reply", "session", name, "error", err)
		return false
	}
	_, connected := reply.(ipc.Connected)
	return connected
}

// ListResurrectable returns every session with a cached layout, whether
// or not it is also live. Errors reading the cache are logged and yield
// an empty list.
func (r *Registry) ListResurrectable() []Info {
	layouts, err := r.layouts.List()
	if err != nil {
		r.logger.Error("failed to read layout cache", "path", r.layouts.Root(), "error", err)
		return nil
	}
	now := r.clock.Now()
	sessions := make([]Info, 0, len(layouts))
	for _, layout := range layouts {
		sessions = append(sessions, Info{
			Name:       layout.Name,
			SocketPath: r.SocketPath(layout.Name),
			Created:    layout.CachedAt,
			Age:        nonNegative(now.Sub(layout.CachedAt)),
			Liveness:   DeadResurrectable,
		})
	}
	return sessions
}

// Merged returns live and resurrectable sessions keyed by name, live
// winning, sorted by age in the given order.
func (r *Registry) Merged(ctx context.Context, order Order) ([]Info, error) {
	live, err := r.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	return MergeViews(live, r.ListResurrectable(), order), nil
}

// MergeViews unions live and resurrectable by name. A name in both is
// reported once, as live.
func MergeViews(live, resurrectable []Info, order Order) []Info {
	byName := make(map[string]Info, len(live)+len(resurrectable))
	for _, info := range resurrectable {
		byName[info.Name] = info
	}
	for _, info := range live {
		byName[info.Name] = info
	}
	merged := make([]Info, 0, len(byName))
	for _, info := range byName {
		merged = append(merged, info)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Age != merged[j].Age {
			if order == NewestFirst {
				return merged[i].Age < merged[j].Age
			}
			return merged[i].Age > merged[j].Age
		}
		return merged[i].Name < merged[j].Name
	})
	return merged
}

// LiveNames returns the names of live sessions.
func (r *Registry) LiveNames(ctx context.Context) ([]string, error) {
	live, err := r.ListLive(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(live))
	for i, info := range live {
		names[i] = info.Name
	}
	return names, nil
}

// Resolve classifies prefix against the live session names.
func (r *Registry) Resolve(ctx context.Context, prefix string) (Match, error) {
	names, err := r.LiveNames(ctx)
	if err != nil {
		return Match{}, err
	}
	return ResolvePrefix(names, prefix), nil
}

// Exists reports whether a live session is named exactly name.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	match, err := r.Resolve(ctx, name)
	if err != nil {
		return false, err
	}
	return match.Kind == MatchExact, nil
}

// IsResurrectable reports whether name has a cached layout.
func (r *Registry) IsResurrectable(name string) bool {
	_, ok, err := r.layouts.Load(name)
	return err == nil && ok
}

// GenerateUniqueName returns an adjective-noun name that is neither
// live nor resurrectable.
func (r *Registry) GenerateUniqueName(ctx context.Context) (string, error) {
	live, err := r.LiveNames(ctx)
	if err != nil {
		return "", fmt.Errorf("listing sessions: %w", err)
	}
	taken := make(map[string]bool)
	for _, name := range live {
		taken[name] = true
	}
	for _, info := range r.ListResurrectable() {
		taken[info.Name] = true
	}

	r.randomMu.Lock()
	defer r.randomMu.Unlock()
	return GenerateName(r.random, taken)
}

// CheckNewName validates name for a new session: it must be a valid
// name, not live, and not resurrectable.
func (r *Registry) CheckNewName(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	exists, err := r.Exists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %q", ErrExists, name)
	}
	if r.IsResurrectable(name) {
		return fmt.Errorf("%w: %q", ErrResurrectable, name)
	}
	return nil
}

// CheckDeletable reports whether name is live, refusing a live session
// unless force is set.
func (r *Registry) CheckDeletable(ctx context.Context, name string, force bool) (bool, error) {
	if err := ValidateName(name); err != nil {
		return false, err
	}
	live, err := r.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if live && !force {
		return true, fmt.Errorf("%w: %q", ErrActive, name)
	}
	return live, nil
}

// Kill asks the session called name to end.
func (r *Registry) Kill(ctx context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.probeTimeout)
	defer cancel()

	conn, err := r.dialer.DialContext(ctx, r.SocketPath(name))
	if err != nil {
		return fmt.Errorf("killing session %q: %w", name, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	channel := ipc.NewClientChannel(conn, r.logger)
	if err := channel.Send(ipc.KillSession{}, ipc.ErrorContext{}.With("registry/kill")); err != nil {
		return fmt.Errorf("killing session %q: %w", name, err)
	}
	return nil
}

// Delete removes the cached layout for name. With force, a live
// session is killed first on a best-effort basis. A missing cache
// folder is reported as ErrNotFound.
func (r *Registry) Delete(ctx context.Context, name string, force bool) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if force {
		if err := r.Kill(ctx, name); err != nil {
			r.logger.Debug("kill before delete failed", "session", name, "error", err)
		}
	}
	return r.layouts.Remove(name)
}

// ResurrectionLayout returns the cached layout for a session that can
// be resurrected.
func (r *Registry) ResurrectionLayout(name string) ([]byte, bool, error) {
	return r.layouts.Load(name)
}

func nonNegative(duration time.Duration) time.Duration {
	if duration < 0 {
		return 0
	}
	return duration
}
