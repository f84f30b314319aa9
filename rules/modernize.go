//go:build ruleguard

// Package gorules defines custom ruleguard rules for golangci-lint. They
// flag pre-generics idioms that keep creeping in from older snippets.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// MinMaxBuiltin flags math.Min/math.Max round-trips through float64 where
// the built-in min/max works directly.
//
// Old:
//
//	result := int(math.Min(float64(a), float64(b)))
//
// New (Go 1.21+):
//
//	result := min(a, b)
func MinMaxBuiltin(m dsl.Matcher) {
	m.Match(
		`int(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b) instead of int(math.Min(float64(...))) (Go 1.21+)").
		Suggest("min($a, $b)")

	m.Match(
		`int64(math.Min(float64($a), float64($b)))`,
	).
		Report("use min($a, $b) instead of int64(math.Min(float64(...))) (Go 1.21+)").
		Suggest("min($a, $b)")

	m.Match(
		`int(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b) instead of int(math.Max(float64(...))) (Go 1.21+)").
		Suggest("max($a, $b)")

	m.Match(
		`int64(math.Max(float64($a), float64($b)))`,
	).
		Report("use max($a, $b) instead of int64(math.Max(float64(...))) (Go 1.21+)").
		Suggest("max($a, $b)")
}

// RangeOverInteger flags counted loops whose index is never used.
//
// Old:
//
//	for i := 0; i < n; i++ { work() }
//
// New (Go 1.22+):
//
//	for range n { work() }
func RangeOverInteger(m dsl.Matcher) {
	m.Match(
		`for $i := 0; $i < $n; $i++ { $*body }`,
	).
		Where(m["n"].Const && !m["body"].Contains("$i")).
		Report("use for range $n when the loop variable is unused (Go 1.22+)")
}

// SortSlices flags the type-specific sort helpers replaced by the generic
// slices package.
func SortSlices(m dsl.Matcher) {
	m.Match(
		`sort.Ints($s)`,
	).
		Report("use slices.Sort($s) instead of sort.Ints (Go 1.21+)").
		Suggest("slices.Sort($s)")

	m.Match(
		`sort.Strings($s)`,
	).
		Report("use slices.Sort($s) instead of sort.Strings (Go 1.21+)").
		Suggest("slices.Sort($s)")

	m.Match(
		`sort.Float64s($s)`,
	).
		Report("use slices.Sort($s) instead of sort.Float64s (Go 1.21+)").
		Suggest("slices.Sort($s)")
}

// MapKeysCollection flags manual map key accumulation loops.
//
// Old:
//
//	keys := make([]string, 0, len(m))
//	for k := range m {
//	    keys = append(keys, k)
//	}
//
// New (Go 1.23+):
//
//	keys := slices.Collect(maps.Keys(m))
func MapKeysCollection(m dsl.Matcher) {
	m.Match(
		`for $k := range $m { $keys = append($keys, $k) }`,
	).
		Report("use slices.Collect(maps.Keys($m)) to collect map keys (Go 1.23+)")
}

// StringsSplitIteration flags strings.Split results that are only ranged
// over, where the iterator form avoids the intermediate slice.
//
// Old:
//
//	for _, part := range strings.Split(s, ",") { process(part) }
//
// New (Go 1.24+):
//
//	for part := range strings.SplitSeq(s, ",") { process(part) }
func StringsSplitIteration(m dsl.Matcher) {
	m.Match(
		`for $_, $part := range strings.Split($s, $sep) { $*body }`,
	).
		Report("use for $part := range strings.SplitSeq($s, $sep) to avoid the intermediate slice (Go 1.24+)")

	m.Match(
		`for $_, $field := range strings.Fields($s) { $*body }`,
	).
		Report("use for $field := range strings.FieldsSeq($s) to avoid the intermediate slice (Go 1.24+)")
}

// JoinHostPort flags listen addresses built with Sprintf or concatenation,
// which produce unbracketed IPv6 addresses.
//
// Old:
//
//	addr := fmt.Sprintf("%s:%d", host, port)
//
// New:
//
//	addr := net.JoinHostPort(host, strconv.Itoa(port))
func JoinHostPort(m dsl.Matcher) {
	m.Match(
		`fmt.Sprintf("%s:%d", $host, $port)`,
	).
		Report("use net.JoinHostPort($host, strconv.Itoa($port)); Sprintf breaks IPv6 addresses")

	m.Match(
		`fmt.Sprintf("%s:%s", $host, $port)`,
	).
		Report("use net.JoinHostPort($host, $port); Sprintf breaks IPv6 addresses")
}
