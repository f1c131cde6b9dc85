// Package indexer writes weighted embeddings per record into the named
// vector spaces. The content-assembly recipes are part of the contract:
// they define what each space semantically matches on.
package indexer

import (
	"strings"

	"github.com/tooldex/tooldex/pkg/model"
)

// repeat appends text n times. Repetition controls the relative mass a
// field gets inside the embedded text.
func repeat(parts []string, text string, n int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return parts
	}
	for i := 0; i < n; i++ {
		parts = append(parts, text)
	}
	return parts
}

func repeatList(parts []string, values []string, n int) []string {
	return repeat(parts, strings.Join(values, " "), n)
}

// AssembleText builds the embedding input for one record in one space.
// An empty result means the record has no input for that space and must
// be skipped for that space only.
func AssembleText(space model.VectorSpace, r *model.Record) string {
	var parts []string
	switch space {
	case model.SpaceSemantic:
		parts = repeat(parts, r.Description, 3)
		parts = repeat(parts, r.LongDescription, 1)
		parts = repeatList(parts, r.UseCases, 2)
		parts = repeat(parts, r.Name, 2)
		parts = repeatList(parts, r.Categories, 1)
		parts = repeatList(parts, r.Functionality, 1)
	case model.SpaceCategories:
		parts = repeatList(parts, r.Categories, 5)
	case model.SpaceFunctionality:
		parts = repeatList(parts, r.Functionality, 5)
	case model.SpaceAliases:
		parts = repeat(parts, r.Name, 5)
		parts = repeatList(parts, r.SearchKeywords, 3)
		parts = repeat(parts, r.Description, 1)
	case model.SpaceToolType:
		parts = repeatList(parts, r.Categories, 3)
		parts = repeatList(parts, r.Functionality, 3)
		parts = repeatList(parts, r.Interfaces, 2)
		parts = repeatList(parts, r.Deployment, 2)
		parts = repeat(parts, r.Name, 1)
	}
	return strings.Join(parts, " ")
}

// AssembleAll builds every non-empty space text for a record, restricted
// to the requested spaces (all of them when spaces is empty).
func AssembleAll(r *model.Record, spaces []model.VectorSpace) map[model.VectorSpace]string {
	if len(spaces) == 0 {
		spaces = model.AllSpaces()
	}
	texts := make(map[model.VectorSpace]string, len(spaces))
	for _, space := range spaces {
		if text := AssembleText(space, r); text != "" {
			texts[space] = text
		}
	}
	return texts
}
