package repls

import (
	"go.starlark.net/starlark"
)

func (e *Env) delegateBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var prompt starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "prompt", &prompt); err != nil {
		return nil, err
	}
	return starlark.String(e.config.Delegate(threadContext(thread), toText(prompt))), nil
}

func (e *Env) delegateBatchBuiltin(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var iterable starlark.Iterable
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "prompts", &iterable); err != nil {
		return nil, err
	}
	var prompts []string
	iter := iterable.Iterate()
	defer iter.Done()
	var value starlark.Value
	for iter.Next(&value) {
		prompts = append(prompts, toText(value))
	}
	results := e.config.DelegateBatch(threadContext(thread), prompts)
	return stringList(results), nil
}

func stringList(strs []string) *starlark.List {
	elems := make([]starlark.Value, 0, len(strs))
	for _, s := range strs {
		elems = append(elems, starlark.String(s))
	}
	return starlark.NewList(elems)
}
