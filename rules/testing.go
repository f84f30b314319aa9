//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// BenchmarkLoop flags counted benchmark loops. b.Loop runs setup once per
// -count and keeps the compiler from optimizing the body away.
func BenchmarkLoop(m dsl.Matcher) {
	// The counter may be used inside the body, so no automatic fix here.
	m.Match(
		`for $i := 0; $i < $b.N; $i++ { $*body }`,
		`for $i := range $b.N { $*body }`,
	).
		Where(m["b"].Type.Is("*testing.B")).
		Report("replace the counted loop with for $b.Loop() (Go 1.24+); declare $i separately if the body needs it")

	m.Match(
		`for range $b.N { $*body }`,
	).
		Where(m["b"].Type.Is("*testing.B")).
		Report("replace for range $b.N with for $b.Loop() (Go 1.24+)").
		Suggest("for $b.Loop() { $body }")
}

// TestingContext flags context.Background in tests. t.Context is canceled
// when the test ends, which signals cleanup to anything still holding it.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$fn(context.Background(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("tests should use t.Context() instead of context.Background(); it is canceled when the test ends (Go 1.24+)")
}
