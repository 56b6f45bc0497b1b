// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Deckd Contributors

// Package search interprets raw query strings and executes semantic
// searches against the vector index.
package search

import (
	"regexp"
	"strings"
)

// Parsed is the interpreted form of a raw search string: the semantic
// query text plus an ordered list of lowercase exclusion terms.
type Parsed struct {
	Query   string
	Exclude []string
}

// excludeClause matches a trailing ", excluding <terms>" clause,
// case-insensitively. Everything before the clause is the query.
var (
	excludeClause = regexp.MustCompile(`(?is)^(.*?)(?:,\s*excluding\s+(.+))?$`)
	termSplit     = regexp.MustCompile(`(?i),|\band\b`)
)

// ParseQuery splits a raw search string into the semantic query and the
// exclusion terms of its trailing "excluding" clause, if any. Terms are
// split on commas and on the standalone word "and", trimmed, lowercased,
// and dropped when empty.
func ParseQuery(raw string) Parsed {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Parsed{Query: "", Exclude: []string{}}
	}

	m := excludeClause.FindStringSubmatch(trimmed)
	if m == nil || m[2] == "" {
		return Parsed{Query: trimmed, Exclude: []string{}}
	}

	exclude := []string{}
	for _, term := range termSplit.Split(m[2], -1) {
		term = strings.ToLower(strings.TrimSpace(term))
		if term != "" {
			exclude = append(exclude, term)
		}
	}

	return Parsed{Query: strings.TrimSpace(m[1]), Exclude: exclude}
}
