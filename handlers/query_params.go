package handlers

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/giygas/doselog/doselog"
	"github.com/giygas/doselog/doseparser"
)

// queryParam is one key=value pair of the raw query, in order
type queryParam struct {
	key   string
	value string
}

// orderedParams splits a raw query string without losing parameter order,
// which url.ParseQuery does not keep
func orderedParams(rawQuery string) ([]queryParam, error) {
	var params []queryParam
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		k, err := url.QueryUnescape(key)
		if err != nil {
			return nil, fmt.Errorf("invalid query parameter %q", key)
		}
		v, err := url.QueryUnescape(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s", k)
		}
		params = append(params, queryParam{key: k, value: v})
	}
	return params, nil
}

// splitList splits a comma separated list, dropping empty items
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// buildQuery applies the filters of rawQuery to the user's history in the
// order they appear. The chain starts from the whole history.
//
//	substance=a,b  Only
//	route=oral     Via (aliases are accepted)
//	last=n         Last
//	year=2024      FromYear
//	from=..&to=..  FromDateRange, applied when "to" is read
func (h *HTTPHandlerImpl) buildQuery(u *doselog.User, rawQuery string) (doselog.Query, error) {
	q := u.All()

	params, err := orderedParams(rawQuery)
	if err != nil {
		return q, err
	}

	var from *time.Time
	for _, p := range params {
		switch p.key {
		case "substance":
			substances := splitList(p.value)
			if len(substances) == 0 {
				return q, fmt.Errorf("substance cannot be empty")
			}
			for i, s := range substances {
				if err := h.validator.ValidateSubstance(s); err != nil {
					return q, err
				}
				substances[i] = doseparser.NormalizeSubstance(s)
			}
			q = q.Only(substances...)

		case "route":
			names := splitList(p.value)
			if len(names) == 0 {
				return q, fmt.Errorf("route cannot be empty")
			}
			for i, name := range names {
				if route, ok := h.registry.Resolve(name); ok {
					names[i] = string(route)
				}
			}
			q = q.Via(names...)

		case "last":
			n, err := h.validator.ValidateLast(p.value)
			if err != nil {
				return q, err
			}
			q = q.Last(n)

		case "year":
			year, err := h.validator.ValidateYear(p.value)
			if err != nil {
				return q, err
			}
			q = q.FromYear(year)

		case "from":
			t, err := h.validator.ValidateDate(p.value)
			if err != nil {
				return q, err
			}
			from = &t

		case "to":
			if from == nil {
				return q, fmt.Errorf("to requires a preceding from")
			}
			end, err := h.validator.ValidateDate(p.value)
			if err != nil {
				return q, err
			}
			// A plain date covers the whole day
			if len(strings.TrimSpace(p.value)) == len(time.DateOnly) {
				end = end.Add(24*time.Hour - time.Nanosecond)
			}
			if end.Before(*from) {
				return q, fmt.Errorf("to must not be before from")
			}
			q = q.FromDateRange(*from, end)
			from = nil

		default:
			return q, fmt.Errorf("unknown query parameter %q", p.key)
		}
	}

	if from != nil {
		return q, fmt.Errorf("from requires a following to")
	}
	return q, nil
}
