// Package concretizer populates values of arbitrary shape with random data so
// generated codec types can be round-tripped without hand-written fixtures.
package concretizer

import (
	"fmt"
	"math"
	"math/rand"
	"reflect"
	"strconv"
	"time"

	"go.uber.org/zap"

	"alma.local/roundtrip/shape"
)

const (
	DefaultMaxLen   = 10
	DefaultMaxDepth = 8
)

// Filler is implemented by types that know how to randomize themselves, for
// example unions whose selector and payload must agree. The concretizer calls
// FillRandom instead of walking such a value.
type Filler interface {
	FillRandom(r *rand.Rand)
}

var fillerType = reflect.TypeOf((*Filler)(nil)).Elem()

// Concretizer fills values with random data. It is not safe for concurrent
// use; give each goroutine its own instance.
type Concretizer struct {
	rng      *rand.Rand
	seed     int64
	maxLen   int
	maxDepth int
	logger   *zap.Logger
}

type Option func(*Concretizer)

// WithSeed makes the generated values reproducible.
func WithSeed(seed int64) Option {
	return func(c *Concretizer) {
		c.seed = seed
	}
}

// WithMaxLen bounds sequence lengths and map sizes to [0, n).
func WithMaxLen(n int) Option {
	return func(c *Concretizer) {
		if n < 1 {
			n = 1
		}
		c.maxLen = n
	}
}

// WithMaxDepth bounds how many composite levels are descended before
// containers are left empty and nil pointers are left nil.
func WithMaxDepth(n int) Option {
	return func(c *Concretizer) {
		if n < 0 {
			n = 0
		}
		c.maxDepth = n
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Concretizer) {
		if l != nil {
			c.logger = l
		}
	}
}

func New(opts ...Option) *Concretizer {
	c := &Concretizer{
		seed:     time.Now().UnixNano(),
		maxLen:   DefaultMaxLen,
		maxDepth: DefaultMaxDepth,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rng = rand.New(rand.NewSource(c.seed))
	return c
}

// Seed returns the seed the random source was created with.
func (c *Concretizer) Seed() int64 {
	return c.seed
}

// Populate fills target, which must be a non-nil pointer, in place. It never
// panics: anything it cannot fill is left as is and reported as a Gap.
func (c *Concretizer) Populate(target any) (report Report) {
	v := reflect.ValueOf(target)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() {
		report.Gaps = append(report.Gaps, Gap{
			Path:   rootPath,
			Type:   typeString(v),
			Reason: ReasonNotAddressable,
		})
		c.logGaps(report)
		return report
	}

	w := &walker{c: c, report: &report, at: rootPath}
	defer func() {
		if r := recover(); r != nil {
			report.Gaps = append(report.Gaps, Gap{
				Path:   w.at,
				Type:   v.Type().String(),
				Reason: ReasonPanic,
				Detail: fmt.Sprint(r),
			})
		}
		c.logGaps(report)
	}()

	w.fill(v.Elem(), rootPath, tagContext{}, 0)
	return report
}

func (c *Concretizer) logGaps(r Report) {
	for _, g := range r.Gaps {
		c.logger.Warn("coverage gap",
			zap.String("path", g.Path),
			zap.String("type", g.Type),
			zap.String("reason", string(g.Reason)),
			zap.String("detail", g.Detail),
			zap.Int64("seed", c.seed),
		)
	}
}

type walker struct {
	c      *Concretizer
	report *Report
	at     string
}

func (w *walker) gap(path string, t reflect.Type, reason Reason, detail string) {
	w.report.Gaps = append(w.report.Gaps, Gap{Path: path, Type: t.String(), Reason: reason, Detail: detail})
}

func (w *walker) fill(v reflect.Value, path string, ctx tagContext, depth int) {
	w.at = path
	if !v.CanSet() {
		return
	}
	if v.CanAddr() && v.Addr().Type().Implements(fillerType) {
		v.Addr().Interface().(Filler).FillRandom(w.c.rng)
		w.report.Filled++
		return
	}

	switch v.Kind() {
	case reflect.Bool:
		v.SetBool(w.c.rng.Intn(2) == 1)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v.SetInt(w.c.randInt(v.Type().Bits()))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		v.SetUint(w.c.randUint(v.Type().Bits()))
	case reflect.Float32, reflect.Float64:
		v.SetFloat(w.c.randFloat(v.Type().Bits()))
	case reflect.String:
		v.SetString(strconv.Itoa(w.c.rng.Int()))
	case reflect.Pointer:
		w.fillPointer(v, path, ctx, depth)
		return
	case reflect.Slice:
		w.fillSlice(v, path, ctx, depth)
		return
	case reflect.Array:
		elemCtx := ctx.shift()
		for i := 0; i < v.Len(); i++ {
			w.fill(v.Index(i), indexPath(path, i), elemCtx, depth+1)
		}
		return
	case reflect.Map:
		w.fillMap(v, path, depth)
		return
	case reflect.Struct:
		for _, f := range shape.Fields(v.Type()) {
			w.fill(v.Field(f.Index), path+"."+f.Name, parseTagContext(f.Tag), depth+1)
		}
		return
	default:
		w.gap(path, v.Type(), ReasonUnsupported, v.Kind().String())
		return
	}
	w.report.Filled++
}

func (w *walker) fillPointer(v reflect.Value, path string, ctx tagContext, depth int) {
	if v.IsNil() {
		if depth >= w.c.maxDepth {
			w.gap(path, v.Type(), ReasonDepth, "nil pointer left unset")
			return
		}
		v.Set(reflect.New(v.Type().Elem()))
	}
	w.fill(v.Elem(), path, ctx, depth+1)
}

func (w *walker) fillSlice(v reflect.Value, path string, ctx tagContext, depth int) {
	n := w.length(v.Type(), path, ctx, depth)
	elemType := v.Type().Elem()
	elemCtx := ctx.shift()
	s := reflect.MakeSlice(v.Type(), 0, n)
	for i := 0; i < n; i++ {
		item := reflect.New(elemType).Elem()
		w.fill(item, indexPath(path, i), elemCtx, depth+1)
		s = reflect.Append(s, item)
	}
	v.Set(s)
}

func (w *walker) fillMap(v reflect.Value, path string, depth int) {
	n := w.length(v.Type(), path, tagContext{}, depth)
	keyType, elemType := v.Type().Key(), v.Type().Elem()
	m := reflect.MakeMapWithSize(v.Type(), n)
	for i := 0; i < n; i++ {
		key := reflect.New(keyType).Elem()
		w.fill(key, path+"<key>", tagContext{}, depth+1)
		val := reflect.New(elemType).Elem()
		w.fill(val, path+"<value>", tagContext{}, depth+1)
		m.SetMapIndex(key, val)
	}
	v.Set(m)
}

// length picks the element count of a sequence or map. Fixed sizes from tags
// win over the depth cut because a short vector is not a valid value.
func (w *walker) length(t reflect.Type, path string, ctx tagContext, depth int) int {
	if size, ok := ctx.size(); ok {
		return size
	}
	if depth >= w.c.maxDepth {
		w.gap(path, t, ReasonDepth, "container left empty")
		return 0
	}
	limit := w.c.maxLen
	if m, ok := ctx.max(); ok && m+1 < limit {
		limit = m + 1
	}
	return w.c.rng.Intn(limit)
}

func (c *Concretizer) randInt(bits int) int64 {
	return int64(c.rng.Uint64()) >> (64 - bits)
}

func (c *Concretizer) randUint(bits int) uint64 {
	return c.rng.Uint64() >> (64 - bits)
}

// randFloat returns sign * [0,1) * 10^e. float32 keeps a narrower exponent so
// values stay in single-precision magnitude.
func (c *Concretizer) randFloat(bits int) float64 {
	exp := 8
	if bits == 32 {
		exp = 4
	}
	f := c.rng.Float64() * math.Pow10(c.rng.Intn(2*exp+1)-exp)
	if c.rng.Intn(2) == 0 {
		f = -f
	}
	if bits == 32 {
		return float64(float32(f))
	}
	return f
}

const rootPath = "$"

func indexPath(path string, i int) string {
	return path + "[" + strconv.Itoa(i) + "]"
}

func typeString(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	return v.Type().String()
}
