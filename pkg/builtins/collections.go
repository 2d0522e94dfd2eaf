package builtins

import (
	"slices"
	"strings"

	"kotlite/pkg/runtime"
)

// Collections declares the iteration protocol, the list, set, map, range and pair
// classes, their factories and the Iterable extension functions.
type Collections struct{}

func (Collections) Name() string { return "collections" }

const elementIteratorClass = "ElementIterator"

// cursor is the delegate value of an ElementIterator.
type cursor struct {
	elements []runtime.Value
	next     int
}

func (Collections) Register(b *runtime.ModuleBuilder) error {
	b.Class("interface Iterator<out T>", nil).
		Method("operator fun hasNext(): Boolean", nil).
		Method("operator fun next(): T", nil)
	b.Class("interface Iterable<out T>", nil).
		Method("operator fun iterator(): Iterator<T>", nil)
	b.Class("class ElementIterator<out T> : Iterator<T>", nil).
		Method("operator fun hasNext(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			c := cursorOf(recv)
			return runtime.Bool(c.next < len(c.elements))
		})).
		Method("operator fun next(): T", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
			c := cursorOf(recv)
			if c.next >= len(c.elements) {
				return nil, ctx.NewException("NoSuchElementException", "Iterator has no more elements.")
			}
			c.next++
			return c.elements[c.next-1], nil
		})

	registerCollectionClasses(b)
	registerMapClasses(b)
	registerFactories(b)
	registerIterableExtensions(b)
	return nil
}

func registerCollectionClasses(b *runtime.ModuleBuilder) {
	b.Class("interface Collection<out E> : Iterable<E>", nil).
		Property("val size: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.IntValue(sizeOf(recv))
		}), nil).
		Method("fun isEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(sizeOf(recv) == 0)
		})).
		Method("fun isNotEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(sizeOf(recv) != 0)
		})).
		Method("operator fun contains(element: E): Boolean", collectionContains).
		Method("operator fun iterator(): Iterator<E>", iterator)

	b.Class("interface List<out E> : Collection<E>", nil).
		Method("operator fun get(index: Int): E", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			i, err := checkIndex(ctx, int(integer(args[0])), len(l.Elements))
			if err != nil {
				return nil, err
			}
			return l.Elements[i], nil
		}).
		Method("fun indexOf(element: E): Int", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			i, err := indexOf(ctx, listData(recv).Elements, args[0])
			return runtime.IntValue(i), err
		}).
		Method("fun subList(fromIndex: Int, toIndex: Int): List<E>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			from, to := int(integer(args[0])), int(integer(args[1]))
			if from < 0 || to > len(l.Elements) || from > to {
				return nil, runtime.Throwf(ctx, "IndexOutOfBoundsException", "fromIndex: %d, toIndex: %d, size: %d", from, to, len(l.Elements))
			}
			return runtime.NewList(false, slices.Clone(l.Elements[from:to])), nil
		})

	b.Class("interface MutableList<E> : List<E>", nil).
		Method("fun add(element: E): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
			l := listData(recv)
			l.Elements = append(l.Elements, args[0])
			return runtime.True
		})).
		Method("fun add(index: Int, element: E): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			i := int(integer(args[0]))
			if i < 0 || i > len(l.Elements) {
				return nil, runtime.IndexOutOfBounds(ctx, i, len(l.Elements))
			}
			l.Elements = slices.Insert(l.Elements, i, args[1])
			return runtime.Unit, nil
		}).
		Method("fun addAll(elements: Iterable<E>): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			es, err := elements(ctx, args[0])
			if err != nil {
				return nil, err
			}
			l := listData(recv)
			l.Elements = append(l.Elements, es...)
			return runtime.Bool(len(es) > 0), nil
		}).
		Method("operator fun set(index: Int, element: E): E", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			i, err := checkIndex(ctx, int(integer(args[0])), len(l.Elements))
			if err != nil {
				return nil, err
			}
			prev := l.Elements[i]
			l.Elements[i] = args[1]
			return prev, nil
		}).
		Method("fun removeAt(index: Int): E", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			i, err := checkIndex(ctx, int(integer(args[0])), len(l.Elements))
			if err != nil {
				return nil, err
			}
			prev := l.Elements[i]
			l.Elements = slices.Delete(l.Elements, i, i+1)
			return prev, nil
		}).
		Method("fun remove(element: E): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			l := listData(recv)
			i, err := indexOf(ctx, l.Elements, args[0])
			if err != nil || i < 0 {
				return runtime.False, err
			}
			l.Elements = slices.Delete(l.Elements, i, i+1)
			return runtime.True, nil
		}).
		Method("fun clear(): Unit", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			listData(recv).Elements = nil
			return runtime.Unit
		})).
		Method("operator fun plusAssign(element: E): Unit", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
			l := listData(recv)
			l.Elements = append(l.Elements, args[0])
			return runtime.Unit
		}))

	b.Class("interface Set<out E> : Collection<E>", nil)
	b.Class("interface MutableSet<E> : Set<E>", nil).
		Method("fun add(element: E): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			s := setData(recv)
			n := s.Len()
			_, err := s.Put(ctx, args[0], runtime.Unit)
			return runtime.Bool(s.Len() > n), err
		}).
		Method("fun addAll(elements: Iterable<E>): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			es, err := elements(ctx, args[0])
			if err != nil {
				return nil, err
			}
			s := setData(recv)
			n := s.Len()
			for _, e := range es {
				if _, err := s.Put(ctx, e, runtime.Unit); err != nil {
					return nil, err
				}
			}
			return runtime.Bool(s.Len() > n), nil
		}).
		Method("fun remove(element: E): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			s := setData(recv)
			n := s.Len()
			_, err := s.Remove(ctx, args[0])
			return runtime.Bool(s.Len() < n), err
		}).
		Method("fun clear(): Unit", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			setData(recv).Clear()
			return runtime.Unit
		})).
		Method("operator fun plusAssign(element: E): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			_, err := setData(recv).Put(ctx, args[0], runtime.Unit)
			return runtime.Unit, err
		})

	for _, r := range []struct{ class, elem string }{{"IntRange", "Int"}, {"LongRange", "Long"}} {
		b.Class("class "+r.class+" : Iterable<"+r.elem+">", nil).
			Property("val first: "+r.elem, fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				d := rangeData(recv)
				return rangeValue(d, d.First)
			}), nil).
			Property("val last: "+r.elem, fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				d := rangeData(recv)
				return rangeValue(d, d.Last)
			}), nil).
			Property("val step: "+r.elem, fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				d := rangeData(recv)
				return rangeValue(d, d.Step)
			}), nil).
			Method("operator fun contains(value: "+r.elem+"): Boolean", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
				return runtime.Bool(rangeData(recv).Contains(long(args[0])))
			})).
			Method("fun isEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
				return runtime.Bool(rangeData(recv).Len() == 0)
			})).
			Method("operator fun iterator(): Iterator<"+r.elem+">", iterator)
	}

	b.Class("class Pair<out A, out B>(first: A, second: B)", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewPair(args[0], args[1])
	})).
		Property("val first: A", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return pairData(recv).First
		}), nil).
		Property("val second: B", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return pairData(recv).Second
		}), nil)
	b.Function("infix fun <A, B> A.to(that: B): Pair<A, B>", fixed(func(recv runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewPair(recv, args[0])
	}))
	b.Property("val Collection<*>.indices: IntRange", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.NewRange(0, int64(sizeOf(recv))-1, 1, false)
	}), nil)
	b.Property("val <T> List<T>.lastIndex: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.IntValue(len(listData(recv).Elements) - 1)
	}), nil)
}

func registerMapClasses(b *runtime.ModuleBuilder) {
	b.Class("interface Map<K, out V>", nil).
		Property("val size: Int", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.IntValue(mapData(recv).Len())
		}), nil).
		Property("val keys: Set<K>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
			keys, err := keySet(ctx, mapData(recv).Keys())
			if err != nil {
				return nil, err
			}
			return runtime.NewSet(false, keys), nil
		}, nil).
		Property("val values: Collection<V>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.NewList(false, mapData(recv).Values())
		}), nil).
		Method("fun isEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(mapData(recv).Len() == 0)
		})).
		Method("fun isNotEmpty(): Boolean", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			return runtime.Bool(mapData(recv).Len() != 0)
		})).
		Method("operator fun get(key: K): V?", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			v, ok, err := mapData(recv).Get(ctx, args[0])
			if err != nil || !ok {
				return runtime.Null, err
			}
			return v, nil
		}).
		Method("fun getOrDefault(key: K, defaultValue: V): V", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			v, ok, err := mapData(recv).Get(ctx, args[0])
			if err != nil || !ok {
				return args[1], err
			}
			return v, nil
		}).
		Method("fun containsKey(key: K): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			_, ok, err := mapData(recv).Get(ctx, args[0])
			return runtime.Bool(ok), err
		}).
		Method("operator fun contains(key: K): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			_, ok, err := mapData(recv).Get(ctx, args[0])
			return runtime.Bool(ok), err
		}).
		Method("fun containsValue(value: V): Boolean", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			i, err := indexOf(ctx, mapData(recv).Values(), args[0])
			return runtime.Bool(i >= 0), err
		})

	b.Class("interface MutableMap<K, V> : Map<K, V>", nil).
		Method("fun put(key: K, value: V): V?", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			prev, err := mapData(recv).Put(ctx, args[0], args[1])
			if prev == nil {
				prev = runtime.Null
			}
			return prev, err
		}).
		Method("operator fun set(key: K, value: V): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			_, err := mapData(recv).Put(ctx, args[0], args[1])
			return runtime.Unit, err
		}).
		Method("fun remove(key: K): V?", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			prev, err := mapData(recv).Remove(ctx, args[0])
			if prev == nil {
				prev = runtime.Null
			}
			return prev, err
		}).
		Method("fun getOrPut(key: K, defaultValue: () -> V): V", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			m := mapData(recv)
			v, ok, err := m.Get(ctx, args[0])
			if err != nil || ok {
				return v, err
			}
			if v, err = ctx.Call(args[1]); err != nil {
				return nil, err
			}
			_, err = m.Put(ctx, args[0], v)
			return v, err
		}).
		Method("fun putAll(from: Map<K, V>): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
			m := mapData(recv)
			return runtime.Unit, mapData(args[0]).Each(func(k, v runtime.Value) error {
				_, err := m.Put(ctx, k, v)
				return err
			})
		}).
		Method("fun clear(): Unit", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
			mapData(recv).Clear()
			return runtime.Unit
		}))

	b.Function("fun <K, V> Map<K, V>.forEach(action: (K, V) -> Unit): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return runtime.Unit, mapData(recv).Each(func(k, v runtime.Value) error {
			_, err := ctx.Call(args[0], k, v)
			return err
		})
	})
	b.Function("fun <K, V> Map<K, V>.toList(): List<Pair<K, V>>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		var out []runtime.Value
		_ = mapData(recv).Each(func(k, v runtime.Value) error {
			out = append(out, runtime.NewPair(k, v))
			return nil
		})
		return runtime.NewList(false, out)
	}))
	b.Function("fun <K, V> Map<K, V>.toMutableMap(): MutableMap<K, V>", fixed(func(recv runtime.Value, _ []runtime.Value) runtime.Value {
		return runtime.NewMap(true, mapData(recv).Copy())
	}))
	b.Function("fun <K, V, R> Map<K, V>.mapValues(transform: (K, V) -> R): Map<K, R>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		out := runtime.NewHashMap()
		err := mapData(recv).Each(func(k, v runtime.Value) error {
			r, err := ctx.Call(args[0], k, v)
			if err != nil {
				return err
			}
			_, err = out.Put(ctx, k, r)
			return err
		})
		return runtime.NewMap(false, out), err
	})
}

func registerFactories(b *runtime.ModuleBuilder) {
	b.Function("fun <T> listOf(vararg elements: T): List<T>", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewList(false, slices.Clone(args))
	}))
	b.Function("fun <T> mutableListOf(vararg elements: T): MutableList<T>", fixed(func(_ runtime.Value, args []runtime.Value) runtime.Value {
		return runtime.NewList(true, slices.Clone(args))
	}))
	b.Function("fun <T> emptyList(): List<T>", fixed(func(runtime.Value, []runtime.Value) runtime.Value {
		return runtime.NewList(false, nil)
	}))
	b.Function("fun <T> setOf(vararg elements: T): Set<T>", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		m, err := keySet(ctx, args)
		return runtime.NewSet(false, m), err
	})
	b.Function("fun <T> mutableSetOf(vararg elements: T): MutableSet<T>", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		m, err := keySet(ctx, args)
		return runtime.NewSet(true, m), err
	})
	b.Function("fun <T> emptySet(): Set<T>", fixed(func(runtime.Value, []runtime.Value) runtime.Value {
		return runtime.NewSet(false, runtime.NewHashMap())
	}))
	b.Function("fun <K, V> mapOf(vararg pairs: Pair<K, V>): Map<K, V>", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		m, err := pairMap(ctx, args)
		return runtime.NewMap(false, m), err
	})
	b.Function("fun <K, V> mutableMapOf(vararg pairs: Pair<K, V>): MutableMap<K, V>", func(ctx runtime.Invoker, _ runtime.Value, args []runtime.Value) (runtime.Value, error) {
		m, err := pairMap(ctx, args)
		return runtime.NewMap(true, m), err
	})
	b.Function("fun <K, V> emptyMap(): Map<K, V>", fixed(func(runtime.Value, []runtime.Value) runtime.Value {
		return runtime.NewMap(false, runtime.NewHashMap())
	}))
}

func registerIterableExtensions(b *runtime.ModuleBuilder) {
	b.Function("fun <T> Iterable<T>.forEach(action: (T) -> Unit): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return runtime.Unit, ctx.Iterate(recv, func(e runtime.Value) error {
			_, err := ctx.Call(args[0], e)
			return err
		})
	})
	b.Function("fun <T> Iterable<T>.forEachIndexed(action: (Int, T) -> Unit): Unit", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		i := int32(0)
		return runtime.Unit, ctx.Iterate(recv, func(e runtime.Value) error {
			_, err := ctx.Call(args[0], runtime.IntValue(i), e)
			i++
			return err
		})
	})
	b.Function("fun <T, R> Iterable<T>.map(transform: (T) -> R): List<R>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		var out []runtime.Value
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			r, err := ctx.Call(args[0], e)
			out = append(out, r)
			return err
		})
		return runtime.NewList(false, out), err
	})
	b.Function("fun <T, R> Iterable<T>.mapIndexed(transform: (Int, T) -> R): List<R>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		var out []runtime.Value
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			r, err := ctx.Call(args[0], runtime.IntValue(len(out)), e)
			out = append(out, r)
			return err
		})
		return runtime.NewList(false, out), err
	})
	b.Function("fun <T> Iterable<T>.filter(predicate: (T) -> Boolean): List<T>", filtered(true))
	b.Function("fun <T> Iterable<T>.filterNot(predicate: (T) -> Boolean): List<T>", filtered(false))
	b.Function("fun <T, R> Iterable<T>.fold(initial: R, operation: (R, T) -> R): R", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		acc := args[0]
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			var err error
			acc, err = ctx.Call(args[1], acc, e)
			return err
		})
		return acc, err
	})
	b.Function("fun <T> Iterable<T>.reduce(operation: (T, T) -> T): T", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		if len(es) == 0 {
			return nil, ctx.NewException("UnsupportedOperationException", "Empty collection can't be reduced.")
		}
		acc := es[0]
		for _, e := range es[1:] {
			if acc, err = ctx.Call(args[0], acc, e); err != nil {
				return nil, err
			}
		}
		return acc, nil
	})
	b.Function("fun <T> Iterable<T>.any(): Boolean", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		return runtime.Bool(len(es) > 0), err
	})
	b.Function("fun <T> Iterable<T>.any(predicate: (T) -> Boolean): Boolean", quantifier(true, true))
	b.Function("fun <T> Iterable<T>.all(predicate: (T) -> Boolean): Boolean", quantifier(false, false))
	b.Function("fun <T> Iterable<T>.none(predicate: (T) -> Boolean): Boolean", quantifier(true, false))
	b.Function("fun <T> Iterable<T>.count(): Int", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		return runtime.IntValue(len(es)), err
	})
	b.Function("fun <T> Iterable<T>.count(predicate: (T) -> Boolean): Int", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		n := int32(0)
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			ok, err := predicate(ctx, args[0], e)
			if ok {
				n++
			}
			return err
		})
		return runtime.IntValue(n), err
	})
	b.Function("fun Iterable<Int>.sum(): Int", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		var n int32
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			n += integer(e)
			return nil
		})
		return runtime.IntValue(n), err
	})
	b.Function("fun Iterable<Long>.sum(): Long", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		var n int64
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			n += long(e)
			return nil
		})
		return runtime.LongValue(n), err
	})
	b.Function("fun Iterable<Double>.sum(): Double", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		var n float64
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			n += double(e)
			return nil
		})
		return runtime.DoubleValue(n), err
	})
	b.Function("fun <T> Iterable<T>.sumOf(selector: (T) -> Int): Int", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		var n int32
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			v, err := ctx.Call(args[0], e)
			if err == nil {
				n += integer(v)
			}
			return err
		})
		return runtime.IntValue(n), err
	})
	b.Function("fun <T : Comparable<T>> Iterable<T>.maxOrNull(): T?", extreme(1))
	b.Function("fun <T : Comparable<T>> Iterable<T>.minOrNull(): T?", extreme(-1))

	b.Function("fun <T> Iterable<T>.first(): T", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		if len(es) == 0 {
			return nil, ctx.NewException("NoSuchElementException", "Collection is empty.")
		}
		return es[0], nil
	})
	b.Function("fun <T> Iterable<T>.last(): T", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		if len(es) == 0 {
			return nil, ctx.NewException("NoSuchElementException", "Collection is empty.")
		}
		return es[len(es)-1], nil
	})
	b.Function("fun <T> Iterable<T>.firstOrNull(): T?", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil || len(es) == 0 {
			return runtime.Null, err
		}
		return es[0], nil
	})
	b.Function("fun <T> Iterable<T>.lastOrNull(): T?", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil || len(es) == 0 {
			return runtime.Null, err
		}
		return es[len(es)-1], nil
	})
	b.Function("fun <T> Iterable<T>.firstOrNull(predicate: (T) -> Boolean): T?", find)
	b.Function("fun <T> Iterable<T>.find(predicate: (T) -> Boolean): T?", find)

	b.Function("fun <T> Iterable<T>.joinToString(separator: String = \", \", prefix: String = \"\", postfix: String = \"\"): String", joinToString)
	b.Function("fun <T> Iterable<T>.joinToString(separator: String = \", \", prefix: String = \"\", postfix: String = \"\", transform: (T) -> String): String", joinToString)

	b.Function("fun <T : Comparable<T>> Iterable<T>.sorted(): List<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		return sortedBy(ctx, recv, nil, false)
	})
	b.Function("fun <T : Comparable<T>> Iterable<T>.sortedDescending(): List<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		return sortedBy(ctx, recv, nil, true)
	})
	b.Function("fun <T, R : Comparable<R>> Iterable<T>.sortedBy(selector: (T) -> R): List<T>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return sortedBy(ctx, recv, args[0], false)
	})
	b.Function("fun <T, R : Comparable<R>> Iterable<T>.sortedByDescending(selector: (T) -> R): List<T>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		return sortedBy(ctx, recv, args[0], true)
	})
	b.Function("fun <T> Iterable<T>.reversed(): List<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		out := slices.Clone(es)
		slices.Reverse(out)
		return runtime.NewList(false, out), err
	})
	b.Function("fun <T> Iterable<T>.take(n: Int): List<T>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		n := min(max(int(integer(args[0])), 0), len(es))
		return runtime.NewList(false, slices.Clone(es[:n])), err
	})
	b.Function("fun <T> Iterable<T>.drop(n: Int): List<T>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		n := min(max(int(integer(args[0])), 0), len(es))
		return runtime.NewList(false, slices.Clone(es[n:])), err
	})
	b.Function("fun <T> Iterable<T>.distinct(): List<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		m, err := keySet(ctx, es)
		return runtime.NewList(false, m.Keys()), err
	})
	b.Function("fun <T> Iterable<T>.toList(): List<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		return runtime.NewList(false, slices.Clone(es)), err
	})
	b.Function("fun <T> Iterable<T>.toMutableList(): MutableList<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		return runtime.NewList(true, slices.Clone(es)), err
	})
	b.Function("fun <T> Iterable<T>.toSet(): Set<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		m, err := keySet(ctx, es)
		return runtime.NewSet(false, m), err
	})
	b.Function("fun <T> Iterable<T>.toMutableSet(): MutableSet<T>", func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		m, err := keySet(ctx, es)
		return runtime.NewSet(true, m), err
	})
	b.Function("fun <T, K> Iterable<T>.groupBy(keySelector: (T) -> K): Map<K, List<T>>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		groups := runtime.NewHashMap()
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			k, err := ctx.Call(args[0], e)
			if err != nil {
				return err
			}
			g, ok, err := groups.Get(ctx, k)
			if err != nil {
				return err
			}
			if !ok {
				g = runtime.NewList(false, nil)
				if _, err := groups.Put(ctx, k, g); err != nil {
					return err
				}
			}
			l := listData(g)
			l.Elements = append(l.Elements, e)
			return nil
		})
		return runtime.NewMap(false, groups), err
	})
	b.Function("fun <K, V> Iterable<K>.associateWith(valueSelector: (K) -> V): Map<K, V>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		out := runtime.NewHashMap()
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			v, err := ctx.Call(args[0], e)
			if err != nil {
				return err
			}
			_, err = out.Put(ctx, e, v)
			return err
		})
		return runtime.NewMap(false, out), err
	})
	b.Function("fun <T, R> Iterable<T>.zip(other: Iterable<R>): List<Pair<T, R>>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		as, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		bs, err := elements(ctx, args[0])
		if err != nil {
			return nil, err
		}
		out := make([]runtime.Value, min(len(as), len(bs)))
		for i := range out {
			out[i] = runtime.NewPair(as[i], bs[i])
		}
		return runtime.NewList(false, out), nil
	})
	b.Function("operator fun <T> Collection<T>.plus(element: T): List<T>", func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		return runtime.NewList(false, append(slices.Clone(es), args[0])), err
	})
}

// --- Helpers ---

func cursorOf(v runtime.Value) *cursor { return v.(*runtime.NativeDelegate).Value.(*cursor) }

func pairData(v runtime.Value) *runtime.PairData {
	return v.(*runtime.NativeDelegate).Value.(*runtime.PairData)
}

// sizeOf is the element count of a native collection or range.
func sizeOf(v runtime.Value) int {
	switch d := v.(*runtime.NativeDelegate).Value.(type) {
	case *runtime.ListData:
		return len(d.Elements)
	case *runtime.SetData:
		return d.Len()
	case *runtime.RangeData:
		return d.Len()
	}
	return 0
}

func rangeValue(d *runtime.RangeData, n int64) runtime.Value {
	if d.IsLong {
		return runtime.LongValue(n)
	}
	return runtime.IntValue(int32(n))
}

// iterator snapshots a native iterable into an ElementIterator.
func iterator(_ runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
	es, err := runtime.Elements(recv)
	if err != nil {
		return nil, err
	}
	return &runtime.NativeDelegate{ClassName: elementIteratorClass, Value: &cursor{elements: slices.Clone(es)}}, nil
}

func collectionContains(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	switch d := recv.(*runtime.NativeDelegate).Value.(type) {
	case *runtime.SetData:
		_, ok, err := d.Get(ctx, args[0])
		return runtime.Bool(ok), err
	case *runtime.ListData:
		i, err := indexOf(ctx, d.Elements, args[0])
		return runtime.Bool(i >= 0), err
	}
	return runtime.False, nil
}

func checkIndex(ctx runtime.Invoker, i, size int) (int, error) {
	if i < 0 || i >= size {
		return 0, runtime.IndexOutOfBounds(ctx, i, size)
	}
	return i, nil
}

func indexOf(ctx runtime.Invoker, es []runtime.Value, v runtime.Value) (int, error) {
	for i, e := range es {
		eq, err := ctx.Equals(e, v)
		if err != nil {
			return -1, err
		}
		if eq {
			return i, nil
		}
	}
	return -1, nil
}

func keySet(ctx runtime.Invoker, es []runtime.Value) (*runtime.HashMap, error) {
	m := runtime.NewHashMap()
	for _, e := range es {
		if _, err := m.Put(ctx, e, runtime.Unit); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func pairMap(ctx runtime.Invoker, pairs []runtime.Value) (*runtime.HashMap, error) {
	m := runtime.NewHashMap()
	for _, p := range pairs {
		d := pairData(p)
		if _, err := m.Put(ctx, d.First, d.Second); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func filtered(keep bool) runtime.NativeFunction {
	return func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		var out []runtime.Value
		err := ctx.Iterate(recv, func(e runtime.Value) error {
			ok, err := predicate(ctx, args[0], e)
			if ok == keep {
				out = append(out, e)
			}
			return err
		})
		return runtime.NewList(false, out), err
	}
}

// quantifier implements any, all and none: it stops at the first element whose
// predicate equals stopOn and returns found in that case.
func quantifier(stopOn, found bool) runtime.NativeFunction {
	return func(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil {
			return nil, err
		}
		for _, e := range es {
			ok, err := predicate(ctx, args[0], e)
			if err != nil {
				return nil, err
			}
			if ok == stopOn {
				return runtime.Bool(found), nil
			}
		}
		return runtime.Bool(!found), nil
	}
}

func find(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	es, err := elements(ctx, recv)
	if err != nil {
		return nil, err
	}
	for _, e := range es {
		ok, err := predicate(ctx, args[0], e)
		if err != nil {
			return nil, err
		}
		if ok {
			return e, nil
		}
	}
	return runtime.Null, nil
}

// extreme returns the greatest (sign 1) or least (sign -1) element, or null.
func extreme(sign int) runtime.NativeFunction {
	return func(ctx runtime.Invoker, recv runtime.Value, _ []runtime.Value) (runtime.Value, error) {
		es, err := elements(ctx, recv)
		if err != nil || len(es) == 0 {
			return runtime.Null, err
		}
		best := es[0]
		for _, e := range es[1:] {
			c, err := ctx.Compare(e, best)
			if err != nil {
				return nil, err
			}
			if c*sign > 0 {
				best = e
			}
		}
		return best, nil
	}
}

func joinToString(ctx runtime.Invoker, recv runtime.Value, args []runtime.Value) (runtime.Value, error) {
	es, err := elements(ctx, recv)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	sb.WriteString(stringOr(args[1], ""))
	for i, e := range es {
		if i > 0 {
			sb.WriteString(stringOr(args[0], ", "))
		}
		if len(args) > 3 {
			if e, err = ctx.Call(args[3], e); err != nil {
				return nil, err
			}
		}
		s, err := ctx.ToString(e)
		if err != nil {
			return nil, err
		}
		sb.WriteString(s)
	}
	sb.WriteString(stringOr(args[2], ""))
	return runtime.StringValue(sb.String()), nil
}

// sortedBy sorts stably by natural order, or by the selector's keys when one is
// given. The first comparison error aborts the sort.
func sortedBy(ctx runtime.Invoker, recv, selector runtime.Value, descending bool) (runtime.Value, error) {
	es, err := elements(ctx, recv)
	if err != nil {
		return nil, err
	}
	keys := slices.Clone(es)
	if selector != nil {
		for i, e := range es {
			if keys[i], err = ctx.Call(selector, e); err != nil {
				return nil, err
			}
		}
	}
	order := make([]int, len(es))
	for i := range order {
		order[i] = i
	}
	var failed error
	slices.SortStableFunc(order, func(a, b int) int {
		if failed != nil {
			return 0
		}
		c, err := ctx.Compare(keys[a], keys[b])
		if err != nil {
			failed = err
		}
		if descending {
			return -c
		}
		return c
	})
	if failed != nil {
		return nil, failed
	}
	out := make([]runtime.Value, len(order))
	for i, j := range order {
		out[i] = es[j]
	}
	return runtime.NewList(false, out), nil
}
