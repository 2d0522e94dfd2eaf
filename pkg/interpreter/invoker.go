package interpreter

import (
	"fmt"
	"strings"

	"kotlite/pkg/runtime"
)

// Equals is `==`: null-safe, structural for collections and dispatched to an
// overridden equals for script instances.
func (it *Interpreter) Equals(a, b runtime.Value) (bool, error) {
	if runtime.IsNull(a) || runtime.IsNull(b) {
		return runtime.IsNull(a) && runtime.IsNull(b), nil
	}
	switch a := a.(type) {
	case *runtime.ClassInstance:
		impl := a.Class.Dispatch(runtime.EqualsSlot)
		if impl == nil || impl.Native != nil {
			return a == b, nil
		}
		v, err := it.callMember(impl, a, []runtime.Value{b}, it.pos)
		if err != nil {
			return false, err
		}
		return v == runtime.True, nil
	case *runtime.LambdaValue:
		return a == b, nil
	case *runtime.NativeDelegate:
		other, ok := b.(*runtime.NativeDelegate)
		if !ok {
			return false, nil
		}
		return it.delegatesEqual(a, other)
	}
	return primitiveEquals(a, b), nil
}

func primitiveEquals(a, b runtime.Value) bool {
	switch a := a.(type) {
	case runtime.IntValue, runtime.LongValue, runtime.ByteValue, runtime.CharValue,
		runtime.BooleanValue, runtime.StringValue, runtime.DoubleValue:
		return a == b
	case runtime.UnitValue:
		_, ok := b.(runtime.UnitValue)
		return ok
	}
	return false
}

func (it *Interpreter) delegatesEqual(a, b *runtime.NativeDelegate) (bool, error) {
	if a == b {
		return true, nil
	}
	switch x := a.Value.(type) {
	case *runtime.ListData:
		y, ok := b.Value.(*runtime.ListData)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false, nil
		}
		for i := range x.Elements {
			if eq, err := it.Equals(x.Elements[i], y.Elements[i]); err != nil || !eq {
				return false, err
			}
		}
		return true, nil
	case *runtime.SetData:
		y, ok := b.Value.(*runtime.SetData)
		if !ok || x.Len() != y.Len() {
			return false, nil
		}
		for _, k := range x.Keys() {
			if _, found, err := y.Get(it, k); err != nil || !found {
				return false, err
			}
		}
		return true, nil
	case *runtime.HashMap:
		y, ok := b.Value.(*runtime.HashMap)
		if !ok || x.Len() != y.Len() {
			return false, nil
		}
		equal := true
		err := x.Each(func(k, v runtime.Value) error {
			other, found, err := y.Get(it, k)
			if err != nil {
				return err
			}
			if found {
				found, err = it.Equals(v, other)
			}
			if !found {
				equal = false
				return errStopLoop
			}
			return err
		})
		if err == errStopLoop {
			err = nil
		}
		return equal && err == nil, err
	case *runtime.RangeData:
		y, ok := b.Value.(*runtime.RangeData)
		return ok && *x == *y, nil
	case *runtime.PairData:
		y, ok := b.Value.(*runtime.PairData)
		if !ok {
			return false, nil
		}
		if eq, err := it.Equals(x.First, y.First); err != nil || !eq {
			return false, err
		}
		return it.Equals(x.Second, y.Second)
	}
	return false, nil
}

// HashCode is hashCode(), consistent with Equals.
func (it *Interpreter) HashCode(v runtime.Value) (int32, error) {
	if h, ok := runtime.PrimitiveHashCode(v); ok {
		return h, nil
	}
	switch v := v.(type) {
	case *runtime.ClassInstance:
		impl := v.Class.Dispatch(runtime.HashCodeSlot)
		if impl == nil || impl.Native != nil {
			return v.ID, nil
		}
		r, err := it.callMember(impl, v, nil, it.pos)
		if err != nil {
			return 0, err
		}
		h, ok := r.(runtime.IntValue)
		if !ok {
			return 0, runtime.Internalf("hashCode returned %s", runtime.Describe(r))
		}
		return int32(h), nil
	case *runtime.NativeDelegate:
		return it.delegateHash(v)
	}
	return 0, nil
}

func (it *Interpreter) delegateHash(nd *runtime.NativeDelegate) (int32, error) {
	switch d := nd.Value.(type) {
	case *runtime.ListData:
		var h int32 = 1
		for _, e := range d.Elements {
			eh, err := it.HashCode(e)
			if err != nil {
				return 0, err
			}
			h = 31*h + eh
		}
		return h, nil
	case *runtime.SetData:
		var h int32
		for _, k := range d.Keys() {
			kh, err := it.HashCode(k)
			if err != nil {
				return 0, err
			}
			h += kh
		}
		return h, nil
	case *runtime.HashMap:
		var h int32
		err := d.Each(func(k, v runtime.Value) error {
			kh, err := it.HashCode(k)
			if err != nil {
				return err
			}
			vh, err := it.HashCode(v)
			h += kh ^ vh
			return err
		})
		return h, err
	case *runtime.RangeData:
		return int32(31*d.First + d.Last), nil
	case *runtime.PairData:
		a, err := it.HashCode(d.First)
		if err != nil {
			return 0, err
		}
		b, err := it.HashCode(d.Second)
		return 31*a + b, err
	}
	return 0, nil
}

// ToString is toString(), dispatched for script instances.
func (it *Interpreter) ToString(v runtime.Value) (string, error) {
	if s, ok := runtime.FormatPrimitive(v); ok {
		return s, nil
	}
	switch v := v.(type) {
	case *runtime.ClassInstance:
		impl := v.Class.Dispatch(runtime.ToStringSlot)
		if impl == nil || impl.Native != nil {
			return it.defaultString(v)
		}
		r, err := it.callMember(impl, v, nil, it.pos)
		if err != nil {
			return "", err
		}
		s, ok := r.(runtime.StringValue)
		if !ok {
			return "", runtime.Internalf("toString returned %s", runtime.Describe(r))
		}
		return string(s), nil
	case *runtime.LambdaValue:
		return "(Function)", nil
	case *runtime.NativeDelegate:
		return it.delegateString(v)
	}
	return runtime.Describe(v), nil
}

// defaultString is Any.toString for script instances: the class name and the hash
// code in hex.
func (it *Interpreter) defaultString(inst *runtime.ClassInstance) (string, error) {
	h, err := it.HashCode(inst)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s@%x", inst.Class.Name, uint32(h)), nil
}

func (it *Interpreter) joinStrings(vs []runtime.Value, open, close string) (string, error) {
	var sb strings.Builder
	sb.WriteString(open)
	for i, e := range vs {
		if i > 0 {
			sb.WriteString(", ")
		}
		s, err := it.ToString(e)
		if err != nil {
			return "", err
		}
		sb.WriteString(s)
	}
	sb.WriteString(close)
	return sb.String(), nil
}

func (it *Interpreter) delegateString(nd *runtime.NativeDelegate) (string, error) {
	switch d := nd.Value.(type) {
	case *runtime.ListData:
		return it.joinStrings(d.Elements, "[", "]")
	case *runtime.SetData:
		return it.joinStrings(d.Keys(), "[", "]")
	case *runtime.HashMap:
		var sb strings.Builder
		sb.WriteString("{")
		first := true
		err := d.Each(func(k, v runtime.Value) error {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			ks, err := it.ToString(k)
			if err != nil {
				return err
			}
			vs, err := it.ToString(v)
			sb.WriteString(ks + "=" + vs)
			return err
		})
		sb.WriteString("}")
		return sb.String(), err
	case *runtime.RangeData:
		switch {
		case d.Step == 1:
			return fmt.Sprintf("%d..%d", d.First, d.Last), nil
		case d.Step > 0:
			return fmt.Sprintf("%d..%d step %d", d.First, d.Last, d.Step), nil
		}
		return fmt.Sprintf("%d downTo %d step %d", d.First, d.Last, -d.Step), nil
	case *runtime.PairData:
		return it.joinStrings([]runtime.Value{d.First, d.Second}, "(", ")")
	case fmt.Stringer:
		return d.String(), nil
	}
	return nd.ClassName, nil
}

// Compare orders values naturally or through compareTo.
func (it *Interpreter) Compare(a, b runtime.Value) (int, error) {
	if inst, ok := a.(*runtime.ClassInstance); ok {
		v, err := it.callMethod(inst, "compareTo", b)
		if err != nil {
			return 0, err
		}
		c, ok := v.(runtime.IntValue)
		if !ok {
			return 0, runtime.Internalf("compareTo returned %s", runtime.Describe(v))
		}
		return int(c), nil
	}
	return compareIntrinsic(a, b)
}
