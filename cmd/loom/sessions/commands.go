// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sessions

import (
	"context"
	"errors"
	"strings"

	"github.com/bureau-foundation/loom/cmd/loom/cli"
	"github.com/bureau-foundation/loom/session"
)

// Commands returns the session commands, all sharing load.
func Commands(load Loader) []*cli.Command {
	return []*cli.Command{
		listCommand(load),
		attachCommand(load),
		newSessionCommand(load),
		killCommand(load),
		deleteCommand(load),
		switchCommand(load),
		serverCommand(load),
	}
}

// notFound reports a missing session, suggesting the closest live or
// resurrectable name.
func notFound(ctx context.Context, env *Environment, name string) error {
	var candidates []string
	if live, err := env.Registry.LiveNames(ctx); err == nil {
		candidates = append(candidates, live...)
	}
	for _, info := range env.Registry.ListResurrectable() {
		candidates = append(candidates, info.Name)
	}
	if suggestion := cli.ClosestMatch(name, candidates); suggestion != "" {
		return cli.NotFound("session %q not found (did you mean %q?)", name, suggestion)
	}
	return cli.NotFound("session %q not found", name)
}

// resolveLive resolves prefix to exactly one live session.
func resolveLive(ctx context.Context, env *Environment, prefix string) (string, error) {
	if err := session.ValidateName(prefix); err != nil {
		return "", cli.Validation("%w", err)
	}
	match, err := env.Registry.Resolve(ctx, prefix)
	if err != nil {
		return "", cli.Internal("listing sessions: %w", err)
	}
	switch match.Kind {
	case session.MatchExact, session.MatchUniquePrefix:
		name, _ := match.Name()
		return name, nil
	case session.MatchAmbiguousPrefix:
		return "", cli.Validation("%q matches several sessions: %s", prefix, strings.Join(match.Names, ", "))
	default:
		return "", notFound(ctx, env, prefix)
	}
}

// newNameError maps CheckNewName failures to command errors.
func newNameError(name string, err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidName):
		return cli.Validation("%w", err)
	case errors.Is(err, session.ErrExists):
		return cli.Conflict("session %q already exists; attach to it with 'loom attach %s'", name, name)
	case errors.Is(err, session.ErrResurrectable):
		return cli.Conflict("session %q exists but is dead; attach to resurrect it, or remove it with 'loom delete-session %s'", name, name)
	default:
		return cli.Internal("checking session name %q: %w", name, err)
	}
}
