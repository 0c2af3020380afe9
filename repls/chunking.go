package repls

import (
	"github.com/reusee/distill/chunks"
	"go.starlark.net/starlark"
)

func chunkBuiltins() starlark.StringDict {
	return starlark.StringDict{

		"chunk_by_section": starlark.NewBuiltin("chunk_by_section", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text); err != nil {
				return nil, err
			}
			return stringList(chunks.BySection(text)), nil
		}),

		"chunk_by_paragraph": starlark.NewBuiltin("chunk_by_paragraph", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			minLength := chunks.DefaultMinParagraphLength
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "min_length?", &minLength); err != nil {
				return nil, err
			}
			return stringList(chunks.ByParagraph(text, minLength)), nil
		}),

		"chunk_by_tokens": starlark.NewBuiltin("chunk_by_tokens", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var text string
			chunkSize := chunks.DefaultChunkSize
			overlap := chunks.DefaultOverlap
			if err := starlark.UnpackArgs(b.Name(), args, kwargs, "text", &text, "chunk_size?", &chunkSize, "overlap?", &overlap); err != nil {
				return nil, err
			}
			ret, err := chunks.ByTokens(text, chunkSize, overlap)
			if err != nil {
				return nil, err
			}
			return stringList(ret), nil
		}),
	}
}
