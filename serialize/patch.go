package serialize

import (
	"context"
	"sort"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/goccy/go-json"

	entikit "github.com/reoring/entikit"
	"github.com/reoring/entikit/schema"
)

// ApplyMergePatch applies an RFC 7386 JSON merge patch to an entity: the
// entity is encoded to its neutral form, the patch merged in, and only the
// patched top-level fields decoded back through a partial pipeline onto a copy
// of the entity. Null patch members remove the field; patch keys outside the
// schema are ignored.
func (c *Compiler) ApplyMergePatch(ctx context.Context, s *schema.Schema, serializerName string, entity map[string]any, patch []byte, opt *entikit.ConvertOpt) (map[string]any, error) {
	encoded, err := c.Convert(ctx, s, serializerName, entikit.Encode, entity, opt)
	if err != nil {
		return nil, err
	}
	doc, err := json.Marshal(encoded)
	if err != nil {
		return nil, entikit.FieldErrors{{Path: "", Code: entikit.CodeParseError, Message: err.Error(), Cause: err}}
	}

	patchVal, err := entikit.JSONBytes(patch)
	if err != nil {
		return nil, err
	}
	pm, ok := patchVal.(map[string]any)
	if !ok {
		return nil, typeError("", "object", patchVal)
	}

	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, entikit.FieldErrors{{Path: "", Code: entikit.CodeParseError, Message: err.Error(), Cause: err}}
	}
	mergedVal, err := entikit.JSONBytes(merged)
	if err != nil {
		return nil, err
	}

	var touched, removed []string
	for k, v := range pm {
		if s.Field(k) == nil {
			continue
		}
		if v == nil {
			removed = append(removed, k)
			continue
		}
		touched = append(touched, k)
	}
	sort.Strings(touched)
	sort.Strings(removed)

	out := make(map[string]any, len(entity))
	for k, v := range entity {
		out[k] = v
	}
	if len(touched) > 0 {
		sub, err := c.ConvertPartial(ctx, s, serializerName, entikit.Decode, touched, mergedVal, opt)
		if err != nil {
			return nil, err
		}
		if subm, ok := sub.(map[string]any); ok {
			for k, v := range subm {
				out[k] = v
			}
		}
	}
	for _, k := range removed {
		delete(out, k)
	}
	return out, nil
}
