package builtins

import (
	"unicode/utf16"

	"github.com/dlclark/regexp2"

	"kotlite/pkg/runtime"
)

// Regex declares the Regex and MatchResult classes, backed by regexp2 for its
// Java-like backtracking syntax, and the String functions taking a Regex.
type Regex struct{}

func (Regex) Name() string { return "regex" }

const (
	regexClass       = "Regex"
	matchResultClass = "MatchResult"
)

// pattern is the delegate value of a Regex.
type pattern struct {
	re     *regexp2.Regexp
	source string
}

func (p *pattern) String() string { return p.source }

// match is the delegate value of a MatchResult. Match positions from regexp2 count
// runes; offsets maps them to UTF-16 indices.
type match struct {
	p       *pattern
	m       *regexp2.Match
	runes   []rune
	offsets []int
}

func (m *match) String() string { return m.m.String() }

func (Regex) Register(b *runtime.ModuleBuilder) error {
	b.Class("class Regex(pattern: String)", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return compileRegex(ctx, str(args[0]))
	}).
		Property("val pattern: String", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.StringValue(regexOf(recv).source)
		}), nil).
		Method("fun matches(input: String): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			m, err := findMatch(ctx, regexOf(recv), str(args[0]), 0)
			if err != nil || m == nil {
				return runtime.False, err
			}
			return runtime.Bool(m.m.Index == 0 && m.m.Length == len(m.runes)), nil
		}).
		Method("fun containsMatchIn(input: String): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			ok, err := regexOf(recv).re.MatchString(str(args[0]))
			if err != nil {
				return nil, regexFailure(ctx, err)
			}
			return runtime.Bool(ok), nil
		}).
		Method("fun find(input: String, startIndex: Int = 0): MatchResult?", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			m, err := findMatch(ctx, regexOf(recv), str(args[0]), int(intOr(args[1], 0)))
			return matchValue(m), err
		}).
		Method("fun findAll(input: String): List<MatchResult>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			var out []runtime.Value
			err := eachMatch(ctx, regexOf(recv), str(args[0]), func(m *match) error {
				out = append(out, matchValue(m))
				return nil
			})
			return runtime.NewList(false, out), err
		}).
		Method("fun replace(input: String, replacement: String): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			s, err := regexOf(recv).re.Replace(str(args[0]), str(args[1]), -1, -1)
			if err != nil {
				return nil, regexFailure(ctx, err)
			}
			return runtime.StringValue(s), nil
		}).
		Method("fun split(input: String): List<String>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			return splitRegex(ctx, regexOf(recv), str(args[0]))
		})

	b.Class("class MatchResult", nil).
		Property("val value: String", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.StringValue(matchOf(recv).m.String())
		}), nil).
		Property("val range: IntRange", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			m := matchOf(recv)
			first, end := m.unit(m.m.Index), m.unit(m.m.Index+m.m.Length)
			return runtime.NewRange(int64(first), int64(end-1), 1, false)
		}), nil).
		Property("val groupValues: List<String>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			groups := matchOf(recv).m.Groups()
			out := make([]runtime.Value, len(groups))
			for i := range groups {
				out[i] = runtime.StringValue("")
				if len(groups[i].Captures) > 0 {
					out[i] = runtime.StringValue(groups[i].String())
				}
			}
			return runtime.NewList(false, out)
		}), nil).
		Method("fun next(): MatchResult?", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
			m := matchOf(recv)
			next, err := m.p.re.FindNextMatch(m.m)
			if err != nil {
				return nil, regexFailure(ctx, err)
			}
			if next == nil {
				return runtime.Null, nil
			}
			return matchValue(&match{p: m.p, m: next, runes: m.runes, offsets: m.offsets}), nil
		})

	b.Function("fun String.toRegex(): Regex", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		return compileRegex(ctx, str(recv))
	})
	b.Function("infix fun String.matches(regex: Regex): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		m, err := findMatch(ctx, regexOf(args[0]), str(recv), 0)
		if err != nil || m == nil {
			return runtime.False, err
		}
		return runtime.Bool(m.m.Index == 0 && m.m.Length == len(m.runes)), nil
	})
	b.Function("fun String.replace(regex: Regex, replacement: String): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		s, err := regexOf(args[0]).re.Replace(str(recv), str(args[1]), -1, -1)
		if err != nil {
			return nil, regexFailure(ctx, err)
		}
		return runtime.StringValue(s), nil
	})
	b.Function("fun String.split(regex: Regex): List<String>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return splitRegex(ctx, regexOf(args[0]), str(recv))
	})
	b.Function("operator fun String.contains(regex: Regex): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		ok, err := regexOf(args[0]).re.MatchString(str(recv))
		if err != nil {
			return nil, regexFailure(ctx, err)
		}
		return runtime.Bool(ok), nil
	})
	return nil
}

func compileRegex(ctx runtime.Invoker, source string) (runtime.Value, error) {
	re, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		return nil, runtime.Throwf(ctx, "IllegalArgumentException", "Invalid regular expression %q: %v", source, err)
	}
	return &runtime.NativeDelegate{ClassName: regexClass, Value: &pattern{re: re, source: source}}, nil
}

func regexOf(v runtime.Value) *pattern { return v.(*runtime.NativeDelegate).Value.(*pattern) }

func matchOf(v runtime.Value) *match { return v.(*runtime.NativeDelegate).Value.(*match) }

func matchValue(m *match) runtime.Value {
	if m == nil {
		return runtime.Null
	}
	return &runtime.NativeDelegate{ClassName: matchResultClass, Value: m}
}

// regexFailure reports a match timeout or engine error as an exception.
func regexFailure(ctx runtime.Invoker, err error) error {
	return runtime.Throwf(ctx, "IllegalStateException", "regex: %v", err)
}

// unitOffsets maps each rune index of runes, plus the end, to its UTF-16 index.
func unitOffsets(runes []rune) []int {
	out := make([]int, len(runes)+1)
	for i, r := range runes {
		out[i+1] = out[i] + len(utf16.Encode([]rune{r}))
	}
	return out
}

func (m *match) unit(runeIndex int) int { return m.offsets[runeIndex] }

// findMatch finds the first match at or after the UTF-16 index start.
func findMatch(ctx runtime.Invoker, p *pattern, input string, start int) (*match, error) {
	runes := []rune(input)
	offsets := unitOffsets(runes)
	if start < 0 || start > offsets[len(runes)] {
		return nil, runtime.IndexOutOfBounds(ctx, start, offsets[len(runes)])
	}
	at := 0
	for at < len(runes) && offsets[at] < start {
		at++
	}
	m, err := p.re.FindRunesMatchStartingAt(runes, at)
	if err != nil {
		return nil, regexFailure(ctx, err)
	}
	if m == nil {
		return nil, nil
	}
	return &match{p: p, m: m, runes: runes, offsets: offsets}, nil
}

func eachMatch(ctx runtime.Invoker, p *pattern, input string, fn func(*match) error) error {
	m, err := findMatch(ctx, p, input, 0)
	for err == nil && m != nil {
		if err = fn(m); err != nil {
			return err
		}
		var next *regexp2.Match
		if next, err = p.re.FindNextMatch(m.m); err != nil {
			return regexFailure(ctx, err)
		}
		if next == nil {
			return nil
		}
		m = &match{p: p, m: next, runes: m.runes, offsets: m.offsets}
	}
	return err
}

// splitRegex splits around matches, keeping trailing empty strings.
func splitRegex(ctx runtime.Invoker, p *pattern, input string) (runtime.Value, error) {
	var out []runtime.Value
	var runes []rune
	last := 0
	err := eachMatch(ctx, p, input, func(m *match) error {
		runes = m.runes
		out = append(out, runtime.StringValue(string(m.runes[last:m.m.Index])))
		last = m.m.Index + m.m.Length
		return nil
	})
	if err != nil {
		return nil, err
	}
	if runes == nil {
		return runtime.NewList(false, []runtime.Value{runtime.StringValue(input)}), nil
	}
	out = append(out, runtime.StringValue(string(runes[last:])))
	return runtime.NewList(false, out), nil
}
