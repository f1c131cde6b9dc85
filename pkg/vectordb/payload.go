package vectordb

import (
	"fmt"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"github.com/tooldex/tooldex/pkg/model"
)

func payloadToQdrant(p model.Payload) (map[string]*qdrant.Value, error) {
	fields := map[string]interface{}{
		"record_id":     p.RecordID,
		"name":          p.Name,
		"description":   p.Description,
		"url":           p.URL,
		"has_free_tier": p.HasFreeTier,
		"indexed_at":    p.IndexedAt.UTC().Format(time.RFC3339),
	}
	if len(p.Categories) > 0 {
		fields["categories"] = toInterfaceSlice(p.Categories)
	}
	if len(p.Functionality) > 0 {
		fields["functionality"] = toInterfaceSlice(p.Functionality)
	}
	if len(p.Interfaces) > 0 {
		fields["interfaces"] = toInterfaceSlice(p.Interfaces)
	}
	if len(p.Pricing) > 0 {
		fields["pricing"] = toInterfaceSlice(p.Pricing)
	}

	payload := make(map[string]*qdrant.Value, len(fields))
	for key, value := range fields {
		val, err := qdrant.NewValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to convert payload value for key %s: %w", key, err)
		}
		payload[key] = val
	}
	return payload, nil
}

func toInterfaceSlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func payloadFromQdrant(payload map[string]*qdrant.Value) model.Payload {
	p := model.Payload{
		RecordID:    stringValue(payload, "record_id"),
		Name:        stringValue(payload, "name"),
		Description: stringValue(payload, "description"),
		URL:         stringValue(payload, "url"),
		HasFreeTier: boolValue(payload, "has_free_tier"),
	}
	p.Categories = stringListValue(payload, "categories")
	p.Functionality = stringListValue(payload, "functionality")
	p.Interfaces = stringListValue(payload, "interfaces")
	p.Pricing = stringListValue(payload, "pricing")

	if ts := stringValue(payload, "indexed_at"); ts != "" {
		if t, err := time.Parse(time.RFC3339, ts); err == nil {
			p.IndexedAt = t
		}
	}
	return p
}

func stringValue(payload map[string]*qdrant.Value, key string) string {
	if v, ok := payload[key]; ok {
		if s, ok := v.Kind.(*qdrant.Value_StringValue); ok {
			return s.StringValue
		}
	}
	return ""
}

func boolValue(payload map[string]*qdrant.Value, key string) bool {
	if v, ok := payload[key]; ok {
		if b, ok := v.Kind.(*qdrant.Value_BoolValue); ok {
			return b.BoolValue
		}
	}
	return false
}

func stringListValue(payload map[string]*qdrant.Value, key string) []string {
	v, ok := payload[key]
	if !ok {
		return nil
	}
	list, ok := v.Kind.(*qdrant.Value_ListValue)
	if !ok || list.ListValue == nil {
		return nil
	}
	out := make([]string, 0, len(list.ListValue.Values))
	for _, item := range list.ListValue.Values {
		if s, ok := item.Kind.(*qdrant.Value_StringValue); ok {
			out = append(out, s.StringValue)
		}
	}
	return out
}
