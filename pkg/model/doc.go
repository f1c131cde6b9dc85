// Package model holds the shared domain types of the tooldex search
// pipeline: catalog records, vector spaces, candidates and merged results,
// intents and retrieval plans, and the classified error type every
// component reports through.
//
// The types here are plain data. Behaviour lives in the owning packages:
// pkg/vectordb and pkg/catalog adapt the stores, pkg/search fuses and
// deduplicates, pkg/planner produces Intent and RetrievalPlan values, and
// pkg/pipeline stitches the stages together.
package model
