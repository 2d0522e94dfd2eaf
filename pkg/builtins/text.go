package builtins

import (
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"kotlite/pkg/runtime"
)

// Text declares the Char and String extensions. Indices count UTF-16 code units.
type Text struct{}

func (Text) Name() string { return "text" }

var (
	upper = cases.Upper(language.Und)
	lower = cases.Lower(language.Und)
)

func (Text) Register(b *runtime.ModuleBuilder) error {
	charPredicate := func(f func(rune) bool) runtime.NativeFunction {
		return fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(f(rune(char(recv))))
		})
	}
	b.Function("fun Char.isDigit(): Boolean", charPredicate(unicode.IsDigit))
	b.Function("fun Char.isLetter(): Boolean", charPredicate(unicode.IsLetter))
	b.Function("fun Char.isLetterOrDigit(): Boolean", charPredicate(func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}))
	b.Function("fun Char.isWhitespace(): Boolean", charPredicate(unicode.IsSpace))
	b.Function("fun Char.isUpperCase(): Boolean", charPredicate(unicode.IsUpper))
	b.Function("fun Char.isLowerCase(): Boolean", charPredicate(unicode.IsLower))
	b.Function("fun Char.uppercaseChar(): Char", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.CharValue(unicode.ToUpper(rune(char(recv))))
	}))
	b.Function("fun Char.lowercaseChar(): Char", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.CharValue(unicode.ToLower(rune(char(recv))))
	}))
	b.Function("fun Char.uppercase(): String", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.StringValue(upper.String(charString(char(recv))))
	}))
	b.Function("fun Char.lowercase(): String", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.StringValue(lower.String(charString(char(recv))))
	}))
	b.Function("fun Char.digitToInt(): Int", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		c := char(recv)
		if c < '0' || c > '9' {
			return nil, runtime.Throwf(ctx, "IllegalArgumentException", "Char %s is not a decimal digit", charString(c))
		}
		return runtime.IntValue(c - '0'), nil
	})

	b.Function("fun String.isEmpty(): Boolean", stringTest(func(s string) bool { return s == "" }))
	b.Function("fun String.isNotEmpty(): Boolean", stringTest(func(s string) bool { return s != "" }))
	b.Function("fun String.isBlank(): Boolean", stringTest(func(s string) bool { return strings.TrimSpace(s) == "" }))
	b.Function("fun String.isNotBlank(): Boolean", stringTest(func(s string) bool { return strings.TrimSpace(s) != "" }))
	b.Function("fun String?.isNullOrEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.Bool(runtime.IsNull(recv) || str(recv) == "")
	}))
	b.Function("fun String.startsWith(prefix: String): Boolean", stringMatch(strings.HasPrefix))
	b.Function("fun String.endsWith(suffix: String): Boolean", stringMatch(strings.HasSuffix))
	b.Function("operator fun String.contains(other: String): Boolean", stringMatch(strings.Contains))
	b.Function("operator fun String.contains(char: Char): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.Bool(indexOfUnits(runtime.UTF16(str(recv)), []uint16{uint16(char(args[0]))}, 0) >= 0)
	}))
	b.Function("fun String.indexOf(string: String, startIndex: Int = 0): Int", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.IntValue(indexOfUnits(runtime.UTF16(str(recv)), runtime.UTF16(str(args[0])), int(intOr(args[1], 0))))
	}))
	b.Function("fun String.indexOf(char: Char, startIndex: Int = 0): Int", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.IntValue(indexOfUnits(runtime.UTF16(str(recv)), []uint16{uint16(char(args[0]))}, int(intOr(args[1], 0))))
	}))
	b.Function("fun String.lastIndexOf(string: String): Int", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.IntValue(lastIndexOfUnits(runtime.UTF16(str(recv)), runtime.UTF16(str(args[0]))))
	}))
	b.Function("fun String.substring(startIndex: Int): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		units := runtime.UTF16(str(recv))
		return substring(ctx, units, int(integer(args[0])), len(units))
	})
	b.Function("fun String.substring(startIndex: Int, endIndex: Int): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return substring(ctx, runtime.UTF16(str(recv)), int(integer(args[0])), int(integer(args[1])))
	})
	b.Function("fun String.trim(): String", stringMap(func(s string) string { return strings.TrimFunc(s, unicode.IsSpace) }))
	b.Function("fun String.trimStart(): String", stringMap(func(s string) string { return strings.TrimLeftFunc(s, unicode.IsSpace) }))
	b.Function("fun String.trimEnd(): String", stringMap(func(s string) string { return strings.TrimRightFunc(s, unicode.IsSpace) }))
	b.Function("fun String.uppercase(): String", stringMap(upper.String))
	b.Function("fun String.lowercase(): String", stringMap(lower.String))
	b.Function("fun String.capitalize(): String", stringMap(func(s string) string {
		units := runtime.UTF16(s)
		if len(units) == 0 {
			return s
		}
		return upper.String(runtime.FromUTF16(units[:1])) + runtime.FromUTF16(units[1:])
	}))
	b.Function("fun String.reversed(): String", stringMap(func(s string) string {
		units := runtime.UTF16(s)
		for i, j := 0, len(units)-1; i < j; i, j = i+1, j-1 {
			units[i], units[j] = units[j], units[i]
		}
		return runtime.FromUTF16(units)
	}))
	b.Function("fun String.repeat(n: Int): String", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		n := integer(args[0])
		if n < 0 {
			return nil, runtime.Throwf(ctx, "IllegalArgumentException", "Count 'n' must be non-negative, but was %d.", n)
		}
		return runtime.StringValue(strings.Repeat(str(recv), int(n))), nil
	})
	b.Function("fun String.padStart(length: Int, padChar: Char = ' '): String", pad(true))
	b.Function("fun String.padEnd(length: Int, padChar: Char = ' '): String", pad(false))
	b.Function("fun String.split(delimiter: String): List<String>", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return stringList(strings.Split(str(recv), str(args[0])))
	}))
	b.Function("fun String.lines(): List<String>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		s := strings.ReplaceAll(str(recv), "\r\n", "\n")
		return stringList(strings.Split(strings.ReplaceAll(s, "\r", "\n"), "\n"))
	}))
	b.Function("fun String.replace(oldValue: String, newValue: String): String", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.StringValue(strings.ReplaceAll(str(recv), str(args[0]), str(args[1])))
	}))
	b.Function("fun String.replace(oldChar: Char, newChar: Char): String", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		units := runtime.UTF16(str(recv))
		for i, u := range units {
			if u == uint16(char(args[0])) {
				units[i] = uint16(char(args[1]))
			}
		}
		return runtime.StringValue(runtime.FromUTF16(units))
	}))
	b.Function("fun String.toList(): List<Char>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		units := runtime.UTF16(str(recv))
		out := make([]runtime.Value, len(units))
		for i, u := range units {
			out[i] = runtime.CharValue(u)
		}
		return runtime.NewList(false, out)
	}))

	b.Function("fun String.toInt(): Int", parseNumber(func(s string) (runtime.Value, bool) {
		n, err := strconv.ParseInt(s, 10, 32)
		return runtime.IntValue(n), err == nil
	}))
	b.Function("fun String.toLong(): Long", parseNumber(func(s string) (runtime.Value, bool) {
		n, err := strconv.ParseInt(s, 10, 64)
		return runtime.LongValue(n), err == nil
	}))
	b.Function("fun String.toDouble(): Double", parseNumber(parseDouble))
	b.Function("fun String.toIntOrNull(): Int?", parseOrNull(func(s string) (runtime.Value, bool) {
		n, err := strconv.ParseInt(s, 10, 32)
		return runtime.IntValue(n), err == nil
	}))
	b.Function("fun String.toLongOrNull(): Long?", parseOrNull(func(s string) (runtime.Value, bool) {
		n, err := strconv.ParseInt(s, 10, 64)
		return runtime.LongValue(n), err == nil
	}))
	b.Function("fun String.toDoubleOrNull(): Double?", parseOrNull(parseDouble))
	b.Function("fun String.toBoolean(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.Bool(strings.EqualFold(str(recv), "true"))
	}))
	return nil
}

func charString(c runtime.CharValue) string { return runtime.FromUTF16([]uint16{uint16(c)}) }

func stringTest(f func(string) bool) runtime.NativeFunction {
	return fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.Bool(f(str(recv)))
	})
}

func stringMatch(f func(s, sub string) bool) runtime.NativeFunction {
	return fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.Bool(f(str(recv), str(args[0])))
	})
}

func stringMap(f func(string) string) runtime.NativeFunction {
	return fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.StringValue(f(str(recv)))
	})
}

func stringList(parts []string) runtime.Value {
	out := make([]runtime.Value, len(parts))
	for i, p := range parts {
		out[i] = runtime.StringValue(p)
	}
	return runtime.NewList(false, out)
}

func indexOfUnits(s, sub []uint16, from int) int {
	if from < 0 {
		from = 0
	}
	for i := from; i+len(sub) <= len(s); i++ {
		if equalUnits(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func lastIndexOfUnits(s, sub []uint16) int {
	for i := len(s) - len(sub); i >= 0; i-- {
		if equalUnits(s[i:i+len(sub)], sub) {
			return i
		}
	}
	return -1
}

func equalUnits(a, b []uint16) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func substring(ctx runtime.Invoker, units []uint16, start, end int) (runtime.Value, error) {
	if start < 0 || end > len(units) || start > end {
		return nil, runtime.Throwf(ctx, "IndexOutOfBoundsException", "begin %d, end %d, length %d", start, end, len(units))
	}
	return runtime.StringValue(runtime.FromUTF16(units[start:end])), nil
}

func pad(start bool) runtime.NativeFunction {
	return func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		n := int(integer(args[0]))
		if n < 0 {
			return nil, runtime.Throwf(ctx, "IllegalArgumentException", "Desired length %d is less than zero.", n)
		}
		c := runtime.CharValue(' ')
		if args[1] != nil {
			c = char(args[1])
		}
		s := str(recv)
		missing := n - runtime.StringLength(s)
		if missing <= 0 {
			return recv, nil
		}
		fill := strings.Repeat(charString(c), missing)
		if start {
			return runtime.StringValue(fill + s), nil
		}
		return runtime.StringValue(s + fill), nil
	}
}

func parseDouble(s string) (runtime.Value, bool) {
	d, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return runtime.DoubleValue(d), err == nil
}

func parseNumber(parse func(string) (runtime.Value, bool)) runtime.NativeFunction {
	return func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		v, ok := parse(str(recv))
		if !ok {
			return nil, runtime.Throwf(ctx, "NumberFormatException", "For input string: \"%s\"", str(recv))
		}
		return v, nil
	}
}

func parseOrNull(parse func(string) (runtime.Value, bool)) runtime.NativeFunction {
	return fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		if v, ok := parse(str(recv)); ok {
			return v
		}
		return runtime.Null
	})
}
