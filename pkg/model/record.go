package model

import "time"

// Record is the indexed unit. The document store owns it; everything else
// holds read-only copies and must tolerate staleness.
type Record struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	LongDescription string             `json:"long_description,omitempty"`
	Categories      []string           `json:"categories,omitempty"`
	Functionality   []string           `json:"functionality,omitempty"`
	SearchKeywords  []string           `json:"search_keywords,omitempty"`
	UseCases        []string           `json:"use_cases,omitempty"`
	Interfaces      []string           `json:"interfaces,omitempty"`
	Deployment      []string           `json:"deployment,omitempty"`
	Languages       []string           `json:"languages,omitempty"`
	Integrations    []string           `json:"integrations,omitempty"`
	SemanticTags    []string           `json:"semantic_tags,omitempty"`
	Pricing         map[string]float64 `json:"pricing,omitempty"`
	URL             string             `json:"url,omitempty"`
}

// HasFreeTier reports whether any pricing tier is zero-cost. Records
// without a pricing schedule are treated as unknown, not free.
func (r *Record) HasFreeTier() bool {
	for tier, price := range r.Pricing {
		if price == 0 || tier == "free" {
			return true
		}
	}
	return false
}

// Payload is the projection of a Record stored alongside its vectors.
type Payload struct {
	RecordID      string    `json:"record_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Categories    []string  `json:"categories,omitempty"`
	Functionality []string  `json:"functionality,omitempty"`
	Interfaces    []string  `json:"interfaces,omitempty"`
	Pricing       []string  `json:"pricing,omitempty"`
	URL           string    `json:"url,omitempty"`
	HasFreeTier   bool      `json:"has_free_tier"`
	IndexedAt     time.Time `json:"indexed_at"`
}

// ProjectPayload builds the stored payload projection for a record.
func ProjectPayload(r *Record, now time.Time) Payload {
	tiers := make([]string, 0, len(r.Pricing))
	for tier := range r.Pricing {
		tiers = append(tiers, tier)
	}
	return Payload{
		RecordID:      r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Categories:    r.Categories,
		Functionality: r.Functionality,
		Interfaces:    r.Interfaces,
		Pricing:       tiers,
		URL:           r.URL,
		HasFreeTier:   r.HasFreeTier(),
		IndexedAt:     now,
	}
}
