// Package topic turns the caller's inputs (explicit topic, raw query, or
// structured query params) into the search topic for a run.
package topic

import (
	"context"
	"fmt"
	"strings"
)

// Builder is the optional query-builder collaborator. It may return a plain
// string or a map exposing a "topic" or "query" field; any failure is
// non-fatal and recorded in the resolution meta.
type Builder interface {
	BuildQuery(ctx context.Context, params map[string]any) (any, error)
}

// naiveKeys are the structured params used for last-resort topic synthesis,
// in a fixed order so the synthesized topic is deterministic.
var naiveKeys = []string{"intent", "location", "flat_type", "age"}

// Meta records how the topic was obtained.
type Meta struct {
	UsedBuilder  bool   `json:"used_builder"`
	BuilderError string `json:"builder_error,omitempty"`
}

// Resolution is the outcome of topic resolution. An empty Topic is not an
// error by itself — the orchestrator decides whether direct URLs make a
// missing topic acceptable.
type Resolution struct {
	Topic string `json:"topic,omitempty"`
	Meta  Meta   `json:"meta"`
}

// Resolver applies the topic precedence chain.
type Resolver struct {
	builder Builder
}

// NewResolver creates a Resolver. builder may be nil.
func NewResolver(builder Builder) *Resolver {
	return &Resolver{builder: builder}
}

// Resolve picks the effective topic: explicit topic wins, then the raw query
// string, then the query builder applied to params, then naive synthesis from
// recognized param keys. Builder failures fall through without raising.
func (r *Resolver) Resolve(ctx context.Context, explicit, rawQuery string, params map[string]any) Resolution {
	if t := strings.TrimSpace(explicit); t != "" {
		return Resolution{Topic: t}
	}
	if q := strings.TrimSpace(rawQuery); q != "" {
		return Resolution{Topic: q}
	}

	var meta Meta
	if r.builder != nil && len(params) > 0 {
		out, err := r.builder.BuildQuery(ctx, params)
		meta.UsedBuilder = true
		if err != nil {
			meta.BuilderError = err.Error()
		} else if t := builderTopic(out); t != "" {
			return Resolution{Topic: t, Meta: meta}
		}
	}

	if t := synthesize(params); t != "" {
		return Resolution{Topic: t, Meta: meta}
	}
	return Resolution{Meta: meta}
}

// builderTopic accepts either a bare string or a map payload with a
// topic/query field.
func builderTopic(out any) string {
	switch v := out.(type) {
	case string:
		return strings.TrimSpace(v)
	case map[string]any:
		for _, key := range []string{"topic", "query"} {
			if s, ok := v[key].(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

// synthesize builds a readable fallback topic from recognized params as
// "key: value" pairs joined with " | ".
func synthesize(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	var parts []string
	for _, k := range naiveKeys {
		v, ok := params[k]
		if !ok || v == nil {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s: %s", k, formatValue(v)))
	}
	return strings.Join(parts, " | ")
}

func formatValue(v any) string {
	if list, ok := v.([]any); ok {
		strs := make([]string, len(list))
		for i, item := range list {
			strs[i] = fmt.Sprintf("%v", item)
		}
		return strings.Join(strs, ", ")
	}
	return fmt.Sprintf("%v", v)
}
