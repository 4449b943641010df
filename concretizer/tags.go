package concretizer

import (
	"reflect"
	"strconv"
	"strings"
)

// tagContext carries the per-dimension length hints an SSZ generator writes
// into struct tags, e.g. `ssz-size:"4,32"` for [][]byte with 4 rows of 32.
type tagContext struct {
	sizes []int
	maxes []int
}

func parseTagContext(tag reflect.StructTag) tagContext {
	return tagContext{
		sizes: parseTagList(tag.Get("ssz-size")),
		maxes: parseTagList(tag.Get("ssz-max")),
	}
}

// parseTagList turns "4,?,32" into [4 -1 32]; "?" and junk mean unbounded.
func parseTagList(raw string) []int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			n = -1
		}
		out = append(out, n)
	}
	return out
}

func (ctx tagContext) size() (int, bool) {
	if len(ctx.sizes) == 0 || ctx.sizes[0] < 0 {
		return 0, false
	}
	return ctx.sizes[0], true
}

func (ctx tagContext) max() (int, bool) {
	if len(ctx.maxes) == 0 || ctx.maxes[0] < 0 {
		return 0, false
	}
	return ctx.maxes[0], true
}

// shift drops the outermost dimension for the element level.
func (ctx tagContext) shift() tagContext {
	var next tagContext
	if len(ctx.sizes) > 1 {
		next.sizes = ctx.sizes[1:]
	}
	if len(ctx.maxes) > 1 {
		next.maxes = ctx.maxes[1:]
	}
	return next
}
