package indexer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tooldex/tooldex/pkg/model"
)

func sampleRecord() *model.Record {
	return &model.Record{
		ID:              "figma",
		Name:            "Figma",
		Description:     "collaborative design tool",
		LongDescription: "browser based interface design",
		Categories:      []string{"design", "prototyping"},
		Functionality:   []string{"vector editing"},
		SearchKeywords:  []string{"ui", "ux"},
		UseCases:        []string{"wireframing"},
		Interfaces:      []string{"web"},
		Deployment:      []string{"cloud"},
	}
}

func TestAssembleTextSemantic(t *testing.T) {
	got := AssembleText(model.SpaceSemantic, sampleRecord())
	want := strings.Join([]string{
		"collaborative design tool",
		"collaborative design tool",
		"collaborative design tool",
		"browser based interface design",
		"wireframing",
		"wireframing",
		"Figma",
		"Figma",
		"design prototyping",
		"vector editing",
	}, " ")
	assert.Equal(t, want, got)
}

func TestAssembleTextCategories(t *testing.T) {
	got := AssembleText(model.SpaceCategories, sampleRecord())
	assert.Equal(t, strings.TrimSpace(strings.Repeat("design prototyping ", 5)), got)
}

func TestAssembleTextAliases(t *testing.T) {
	got := AssembleText(model.SpaceAliases, sampleRecord())
	want := strings.Join([]string{
		"Figma", "Figma", "Figma", "Figma", "Figma",
		"ui ux", "ui ux", "ui ux",
		"collaborative design tool",
	}, " ")
	assert.Equal(t, want, got)
}

func TestAssembleTextToolType(t *testing.T) {
	got := AssembleText(model.SpaceToolType, sampleRecord())
	want := strings.Join([]string{
		"design prototyping", "design prototyping", "design prototyping",
		"vector editing", "vector editing", "vector editing",
		"web", "web",
		"cloud", "cloud",
		"Figma",
	}, " ")
	assert.Equal(t, want, got)
}

func TestAssembleTextEmptyFields(t *testing.T) {
	bare := &model.Record{ID: "x", Name: "X"}
	assert.Empty(t, AssembleText(model.SpaceCategories, bare))
	assert.Empty(t, AssembleText(model.SpaceFunctionality, bare))
	assert.Equal(t, "X X", AssembleText(model.SpaceSemantic, bare))
}

// A record with no categories gets no categories-space text; the other
// spaces still assemble.
func TestAssembleAllSkipsEmptySpaces(t *testing.T) {
	r := sampleRecord()
	r.Categories = nil

	texts := AssembleAll(r, nil)
	assert.NotContains(t, texts, model.SpaceCategories)
	assert.Contains(t, texts, model.SpaceSemantic)
	assert.Contains(t, texts, model.SpaceFunctionality)
	assert.Contains(t, texts, model.SpaceAliases)
	assert.Contains(t, texts, model.SpaceToolType)
}

func TestAssembleAllRestrictedSpaces(t *testing.T) {
	texts := AssembleAll(sampleRecord(), []model.VectorSpace{model.SpaceSemantic})
	assert.Len(t, texts, 1)
	assert.Contains(t, texts, model.SpaceSemantic)
}
