// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sort"
	"strings"
)

// MatchKind classifies the result of ResolvePrefix.
type MatchKind int

const (
	// MatchNone means no session name starts with the prefix.
	MatchNone MatchKind = iota
	// MatchExact means a session is named exactly the prefix.
	MatchExact
	// MatchUniquePrefix means exactly one session name starts with the
	// prefix.
	MatchUniquePrefix
	// MatchAmbiguousPrefix means several session names start with the
	// prefix.
	MatchAmbiguousPrefix
)

func (k MatchKind) String() string {
	switch k {
	case MatchNone:
		return "none"
	case MatchExact:
		return "exact"
	case MatchUniquePrefix:
		return "unique_prefix"
	case MatchAmbiguousPrefix:
		return "ambiguous_prefix"
	default:
		return "unknown"
	}
}

// Match is the outcome of resolving a name prefix.
type Match struct {
	Kind MatchKind

	// Names holds the single resolved name for MatchExact and
	// MatchUniquePrefix, every candidate (sorted) for
	// MatchAmbiguousPrefix, and nothing for MatchNone.
	Names []string
}

// Name returns the resolved name for an exact or unique match.
func (m Match) Name() (string, bool) {
	if m.Kind == MatchExact || m.Kind == MatchUniquePrefix {
		return m.Names[0], true
	}
	return "", false
}

// ResolvePrefix classifies prefix against names. An exact match wins
// even when other names share the prefix.
func ResolvePrefix(names []string, prefix string) Match {
	var candidates []string
	for _, name := range names {
		if name == prefix {
			return Match{Kind: MatchExact, Names: []string{name}}
		}
		if strings.HasPrefix(name, prefix) {
			candidates = append(candidates, name)
		}
	}
	switch len(candidates) {
	case 0:
		return Match{Kind: MatchNone}
	case 1:
		return Match{Kind: MatchUniquePrefix, Names: candidates}
	default:
		sort.Strings(candidates)
		return Match{Kind: MatchAmbiguousPrefix, Names: candidates}
	}
}
