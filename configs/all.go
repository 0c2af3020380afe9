package configs

import (
	"fmt"
	"iter"
)

// All decodes every value at path, in file order.
// Iteration continues after a failure only if the caller keeps ranging.
func All[T any](loader Loader, path string) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for value, err := range loader.IterCueValues(path) {
			var v T
			if err != nil {
				if !yield(v, err) {
					return
				}
				continue
			}
			if err := value.Decode(&v); err != nil {
				err = fmt.Errorf("decode %s: %w", path, err)
			}
			if !yield(v, err) {
				return
			}
		}
	}
}
