package runtime

// Collection class names used for native delegates.
const (
	ListClass        = "List"
	MutableListClass = "MutableList"
	SetClass         = "Set"
	MutableSetClass  = "MutableSet"
	MapClass         = "Map"
	MutableMapClass  = "MutableMap"
	IntRangeClass    = "IntRange"
	LongRangeClass   = "LongRange"
	PairClass        = "Pair"
)

// ListData backs List and MutableList.
type ListData struct {
	Elements []Value
}

// NewList wraps elements in a list delegate. The slice is owned by the list.
func NewList(mutable bool, elements []Value) *NativeDelegate {
	class := ListClass
	if mutable {
		class = MutableListClass
	}
	return &NativeDelegate{ClassName: class, Value: &ListData{Elements: elements}}
}

// PairData backs Pair. Pairs compare, hash and print structurally.
type PairData struct {
	First, Second Value
}

// NewPair creates a pair delegate.
func NewPair(first, second Value) *NativeDelegate {
	return &NativeDelegate{ClassName: PairClass, Value: &PairData{First: first, Second: second}}
}

// RangeData backs IntRange and LongRange: First to Last inclusive by Step.
type RangeData struct {
	First, Last, Step int64
	IsLong            bool
}

// NewRange creates a range delegate.
func NewRange(first, last, step int64, long bool) *NativeDelegate {
	class := IntRangeClass
	if long {
		class = LongRangeClass
	}
	return &NativeDelegate{ClassName: class, Value: &RangeData{First: first, Last: last, Step: step, IsLong: long}}
}

// Len is the number of elements the range yields.
func (r *RangeData) Len() int {
	switch {
	case r.Step > 0 && r.First <= r.Last:
		return int((r.Last-r.First)/r.Step) + 1
	case r.Step < 0 && r.First >= r.Last:
		return int((r.First-r.Last)/(-r.Step)) + 1
	}
	return 0
}

// At returns the i-th element.
func (r *RangeData) At(i int) Value {
	v := r.First + int64(i)*r.Step
	if r.IsLong {
		return LongValue(v)
	}
	return IntValue(int32(v))
}

// Contains reports whether v lies on the range.
func (r *RangeData) Contains(v int64) bool {
	if r.Step > 0 {
		return v >= r.First && v <= r.Last && (v-r.First)%r.Step == 0
	}
	return v <= r.First && v >= r.Last && (r.First-v)%(-r.Step) == 0
}

type mapEntry struct {
	key, value Value
	hash       int32
	deleted    bool
}

// HashMap is an insertion-ordered hash map keyed by script equality: hashCode
// selects the bucket and equals decides key identity, so user classes overriding
// both coalesce as keys.
type HashMap struct {
	entries []*mapEntry
	buckets map[int32][]*mapEntry
	size    int
}

// NewHashMap creates an empty map.
func NewHashMap() *HashMap {
	return &HashMap{buckets: map[int32][]*mapEntry{}}
}

// NewMap wraps a HashMap in a Map or MutableMap delegate.
func NewMap(mutable bool, m *HashMap) *NativeDelegate {
	class := MapClass
	if mutable {
		class = MutableMapClass
	}
	return &NativeDelegate{ClassName: class, Value: m}
}

// NewSet wraps a HashMap used as a set in a Set or MutableSet delegate.
func NewSet(mutable bool, m *HashMap) *NativeDelegate {
	class := SetClass
	if mutable {
		class = MutableSetClass
	}
	return &NativeDelegate{ClassName: class, Value: &SetData{m}}
}

// SetData backs Set and MutableSet.
type SetData struct {
	*HashMap
}

func (m *HashMap) find(ctx Invoker, key Value) (*mapEntry, int32, error) {
	h, err := ctx.HashCode(key)
	if err != nil {
		return nil, 0, err
	}
	for _, e := range m.buckets[h] {
		eq, err := ctx.Equals(e.key, key)
		if err != nil {
			return nil, 0, err
		}
		if eq {
			return e, h, nil
		}
	}
	return nil, h, nil
}

// Len is the number of live entries.
func (m *HashMap) Len() int { return m.size }

// Get returns the value stored under key.
func (m *HashMap) Get(ctx Invoker, key Value) (Value, bool, error) {
	e, _, err := m.find(ctx, key)
	if err != nil || e == nil {
		return nil, false, err
	}
	return e.value, true, nil
}

// Put stores value under key, keeping the original insertion position for an
// existing key. It returns the previous value or nil.
func (m *HashMap) Put(ctx Invoker, key, value Value) (Value, error) {
	e, h, err := m.find(ctx, key)
	if err != nil {
		return nil, err
	}
	if e != nil {
		prev := e.value
		e.value = value
		return prev, nil
	}
	e = &mapEntry{key: key, value: value, hash: h}
	m.entries = append(m.entries, e)
	m.buckets[h] = append(m.buckets[h], e)
	m.size++
	return nil, nil
}

// Remove deletes key and returns its value or nil.
func (m *HashMap) Remove(ctx Invoker, key Value) (Value, error) {
	e, h, err := m.find(ctx, key)
	if err != nil || e == nil {
		return nil, err
	}
	e.deleted = true
	bucket := m.buckets[h]
	for i, other := range bucket {
		if other == e {
			m.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(m.buckets[h]) == 0 {
		delete(m.buckets, h)
	}
	m.size--
	if len(m.entries) > 16 && m.size < len(m.entries)/2 {
		m.compact()
	}
	return e.value, nil
}

func (m *HashMap) compact() {
	live := make([]*mapEntry, 0, m.size)
	for _, e := range m.entries {
		if !e.deleted {
			live = append(live, e)
		}
	}
	m.entries = live
}

// Clear removes every entry.
func (m *HashMap) Clear() {
	m.entries = nil
	m.buckets = map[int32][]*mapEntry{}
	m.size = 0
}

// Keys returns the keys in insertion order.
func (m *HashMap) Keys() []Value {
	out := make([]Value, 0, m.size)
	for _, e := range m.entries {
		if !e.deleted {
			out = append(out, e.key)
		}
	}
	return out
}

// Values returns the values in insertion order.
func (m *HashMap) Values() []Value {
	out := make([]Value, 0, m.size)
	for _, e := range m.entries {
		if !e.deleted {
			out = append(out, e.value)
		}
	}
	return out
}

// Each visits entries in insertion order until fn returns an error.
func (m *HashMap) Each(fn func(key, value Value) error) error {
	for _, e := range append([]*mapEntry(nil), m.entries...) {
		if e.deleted {
			continue
		}
		if err := fn(e.key, e.value); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a shallow copy.
func (m *HashMap) Copy() *HashMap {
	out := NewHashMap()
	for _, e := range m.entries {
		if e.deleted {
			continue
		}
		ne := &mapEntry{key: e.key, value: e.value, hash: e.hash}
		out.entries = append(out.entries, ne)
		out.buckets[e.hash] = append(out.buckets[e.hash], ne)
		out.size++
	}
	return out
}

// Iterate visits the elements of an iterable runtime value: lists, sets, ranges,
// map keys and the characters of a string.
func Iterate(v Value, fn func(Value) error) error {
	switch v := v.(type) {
	case StringValue:
		for _, u := range UTF16(string(v)) {
			if err := fn(CharValue(u)); err != nil {
				return err
			}
		}
		return nil
	case *NativeDelegate:
		switch d := v.Value.(type) {
		case *ListData:
			for i := 0; i < len(d.Elements); i++ {
				if err := fn(d.Elements[i]); err != nil {
					return err
				}
			}
			return nil
		case *SetData:
			return d.Each(func(k, _ Value) error { return fn(k) })
		case *RangeData:
			n := d.Len()
			for i := 0; i < n; i++ {
				if err := fn(d.At(i)); err != nil {
					return err
				}
			}
			return nil
		}
	}
	return Internalf("%s is not iterable", Describe(v))
}

// Elements collects the elements of an iterable value.
func Elements(v Value) ([]Value, error) {
	if nd, ok := v.(*NativeDelegate); ok {
		if l, ok := nd.Value.(*ListData); ok {
			return l.Elements, nil
		}
	}
	var out []Value
	err := Iterate(v, func(e Value) error {
		out = append(out, e)
		return nil
	})
	return out, err
}
