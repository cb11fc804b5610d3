// Package search parses the node search box syntax.
//
// A query mixes free text with key:value filters:
//
//	climate type:objective status:live tag:energy rating:4 scope:eu
//
// Numeric ratings 1..5 are translated to letter grades E..A.
package search

import (
	"net/url"
	"strings"
)

// Query is a parsed search string.
type Query struct {
	Text   []string `json:"text"`
	Types  []string `json:"type"`
	Tags   []string `json:"tag"`
	Status []string `json:"status"`
	Scope  string   `json:"scope,omitempty"`
	Rating []string `json:"rating"`
}

var numericGrades = map[string]string{"1": "E", "2": "D", "3": "C", "4": "B", "5": "A"}

// Parse splits q on whitespace and sorts tokens into filters. A filter with
// an empty value is treated as free text. The last scope: filter wins.
func Parse(q string) Query {
	var out Query
	for _, token := range strings.Fields(q) {
		key, value, ok := strings.Cut(token, ":")
		if !ok || value == "" {
			out.Text = append(out.Text, token)
			continue
		}
		switch key {
		case "type":
			out.Types = append(out.Types, value)
		case "tag":
			out.Tags = append(out.Tags, value)
		case "status":
			out.Status = append(out.Status, value)
		case "scope":
			out.Scope = value
		case "rating":
			if grade, ok := numericGrades[value]; ok {
				value = grade
			}
			out.Rating = append(out.Rating, value)
		default:
			out.Text = append(out.Text, token)
		}
	}
	return out
}

// Empty reports whether the query has no terms at all.
func (q Query) Empty() bool {
	return len(q.Text) == 0 && len(q.Types) == 0 && len(q.Tags) == 0 &&
		len(q.Status) == 0 && q.Scope == "" && len(q.Rating) == 0
}

// Values builds the query string understood by GET /nodes.
func (q Query) Values() url.Values {
	v := url.Values{}
	if len(q.Text) > 0 {
		v.Set("title", strings.Join(q.Text, " "))
	}
	for _, t := range q.Types {
		v.Add("node_type", t)
	}
	for _, s := range q.Status {
		v.Add("status", s)
	}
	for _, t := range q.Tags {
		v.Add("tags", t)
	}
	if q.Scope != "" {
		v.Set("scope", q.Scope)
	}
	for _, r := range q.Rating {
		v.Add("rating", r)
	}
	return v
}
