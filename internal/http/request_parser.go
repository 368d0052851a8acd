// Package http provides HTTP server and handler implementations.
//
// This file turns query strings into filter selections.

package http

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"pulse/internal/core"
)

// Filter query parameters. Each may repeat; a parameter that is absent selects
// every observed value, one that is present with only empty values selects none.
const (
	ParamYear    = "year"
	ParamQuarter = "quarter"
	ParamState   = "state"
	ParamType    = "type"
)

// ParseSelection builds a FilterSelection from query values.
func ParseSelection(query url.Values) (core.FilterSelection, error) {
	var sel core.FilterSelection
	var err error

	if sel.Years, err = parseIntSet(query, ParamYear, nil); err != nil {
		return core.FilterSelection{}, err
	}
	if sel.Quarters, err = parseIntSet(query, ParamQuarter, core.ValidQuarter); err != nil {
		return core.FilterSelection{}, err
	}
	sel.States = parseStringSet(query, ParamState)
	sel.TransactionTypes = parseStringSet(query, ParamType)
	return sel, nil
}

// values returns the non-empty values of key and whether key was sent at all.
// Comma-separated values are split so both ?year=2020&year=2021 and
// ?year=2020,2021 work.
func values(query url.Values, key string) ([]string, bool) {
	raw, present := query[key]
	if !present {
		return nil, false
	}
	out := []string{}
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = sanitizeInput(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out, true
}

func parseIntSet(query url.Values, key string, valid func(int) bool) ([]int, error) {
	raw, present := values(query, key)
	if !present {
		return nil, nil
	}
	out := make([]int, 0, len(raw))
	for _, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || (valid != nil && !valid(n)) {
			return nil, fmt.Errorf("invalid %s %q", key, v)
		}
		out = append(out, n)
	}
	return out, nil
}

func parseStringSet(query url.Values, key string) []string {
	raw, present := values(query, key)
	if !present {
		return nil
	}
	return raw
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether the request was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
