package repls

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/reusee/starlarkutil"
	"go.starlark.net/starlark"
)

// ToValue converts a Go value for use in the namespace.
// Functions become builtins named name; structs become dicts of exported fields.
func ToValue(name string, v any) (starlark.Value, error) {
	switch v := v.(type) {

	case nil:
		return starlark.None, nil
	case starlark.Value:
		return v, nil

	case bool:
		return starlark.Bool(v), nil
	case []byte:
		return starlark.Bytes(v), nil
	case string:
		return starlark.String(v), nil

	case int:
		return starlark.MakeInt(v), nil
	case int64:
		return starlark.MakeInt64(v), nil
	case uint64:
		return starlark.MakeUint64(v), nil
	case float64:
		return starlark.Float(v), nil

	}

	value := reflect.ValueOf(v)
	switch value.Kind() {

	case reflect.Bool:
		return starlark.Bool(value.Bool()), nil

	case reflect.String:
		return starlark.String(value.String()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return starlark.MakeInt64(value.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return starlark.MakeUint64(value.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return starlark.Float(value.Float()), nil

	case reflect.Slice, reflect.Array:
		elems := make([]starlark.Value, value.Len())
		for i := range value.Len() {
			elem, err := ToValue(name, value.Index(i).Interface())
			if err != nil {
				return nil, err
			}
			elems[i] = elem
		}
		return starlark.NewList(elems), nil

	case reflect.Map:
		// keys in sorted order, so the dict's representation is stable
		type entry struct {
			key   starlark.Value
			value reflect.Value
		}
		entries := make([]entry, 0, value.Len())
		iter := value.MapRange()
		for iter.Next() {
			k, err := ToValue(name, iter.Key().Interface())
			if err != nil {
				return nil, err
			}
			entries = append(entries, entry{k, iter.Value()})
		}
		slices.SortFunc(entries, func(a, b entry) int {
			return strings.Compare(a.key.String(), b.key.String())
		})
		d := starlark.NewDict(len(entries))
		for _, e := range entries {
			v, err := ToValue(name, e.value.Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(e.key, v); err != nil {
				return nil, err
			}
		}
		return d, nil

	case reflect.Struct:
		typ := value.Type()
		d := starlark.NewDict(value.NumField())
		for i := range value.NumField() {
			field := typ.Field(i)
			if !field.IsExported() {
				continue
			}
			v, err := ToValue(name, value.Field(i).Interface())
			if err != nil {
				return nil, err
			}
			if err := d.SetKey(starlark.String(field.Name), v); err != nil {
				return nil, err
			}
		}
		return d, nil

	case reflect.Pointer, reflect.Interface:
		elem := value.Elem()
		if !elem.IsValid() {
			return starlark.None, nil
		}
		return ToValue(name, elem.Interface())

	case reflect.Func:
		return starlarkutil.MakeFunc(name, v), nil

	}

	return nil, fmt.Errorf("unsupported type: %T", v)
}

func contextValue(document any) (starlark.Value, error) {
	if document == nil {
		return starlark.String(""), nil
	}
	value, err := ToValue("context", document)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return value, nil
}

// ContextText is the text form of a context: strings as they are, other
// documents in their Starlark representation.
func ContextText(document any) (string, error) {
	value, err := contextValue(document)
	if err != nil {
		return "", err
	}
	return toText(value), nil
}
