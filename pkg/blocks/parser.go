package blocks

import (
	"encoding/json"
	"strings"
)

// ParsedBlock is a single block found in serialized content
type ParsedBlock struct {
	TypeName string                 `json:"typeName"`
	Attrs    map[string]interface{} `json:"attrs"`
}

// ParseBlocks scans serialized content for block delimiter comments and
// returns the blocks in document order. Both the self-closing form
// `<!-- wp:name {attrs} /-->` and the paired form
// `<!-- wp:name {attrs} --> ... <!-- /wp:name -->` are recognized.
// Blocks with malformed attribute JSON are kept with nil attrs; the
// parser never fails on bad input.
func ParseBlocks(content string) []ParsedBlock {
	var parsed []ParsedBlock

	rest := content
	for {
		start := strings.Index(rest, "<!-- wp:")
		if start == -1 {
			break
		}
		rest = rest[start+len("<!-- wp:"):]

		end := strings.Index(rest, "-->")
		if end == -1 {
			break
		}

		inner := strings.TrimSpace(rest[:end])
		rest = rest[end+len("-->"):]

		// Self-closing marker ends with a slash before the comment close.
		inner = strings.TrimSuffix(inner, "/")
		inner = strings.TrimSpace(inner)
		if inner == "" {
			continue
		}

		name, attrJSON := splitNameAttrs(inner)
		if name == "" {
			continue
		}

		block := ParsedBlock{TypeName: name}
		if attrJSON != "" {
			var attrs map[string]interface{}
			if err := json.Unmarshal([]byte(attrJSON), &attrs); err == nil {
				block.Attrs = attrs
			}
		}
		parsed = append(parsed, block)
	}

	return parsed
}

// splitNameAttrs splits a delimiter body like `block {"ref":7}` into the
// block name and the raw attribute JSON. Names without an explicit
// namespace are implicitly `core/` prefixed, matching block serialization.
func splitNameAttrs(inner string) (name, attrJSON string) {
	if idx := strings.IndexAny(inner, " \t\n"); idx != -1 {
		name = inner[:idx]
		attrJSON = strings.TrimSpace(inner[idx+1:])
	} else {
		name = inner
	}

	if name != "" && !strings.Contains(name, "/") {
		name = "core/" + name
	}
	if attrJSON != "" && !strings.HasPrefix(attrJSON, "{") {
		attrJSON = ""
	}
	return name, attrJSON
}

// ExtractBlockRefs returns the IDs of reusable blocks referenced by the
// content, deduplicated and in parse order. References lacking a positive
// integer `ref` attribute are skipped.
func ExtractBlockRefs(content string) []int64 {
	var refs []int64
	seen := make(map[int64]bool)

	for _, block := range ParseBlocks(content) {
		if block.TypeName != RefBlockName {
			continue
		}
		ref, ok := refAttr(block.Attrs)
		if !ok || ref <= 0 || seen[ref] {
			continue
		}
		seen[ref] = true
		refs = append(refs, ref)
	}

	return refs
}

// refAttr extracts the integer `ref` attribute from parsed block attrs.
// JSON numbers decode as float64.
func refAttr(attrs map[string]interface{}) (int64, bool) {
	if attrs == nil {
		return 0, false
	}
	switch v := attrs["ref"].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	}
	return 0, false
}

// SerializeRef renders the delimiter comment embedding the given block,
// the inverse of ExtractBlockRefs for a single reference.
func SerializeRef(blockID int64) string {
	data, _ := json.Marshal(map[string]int64{"ref": blockID})
	return "<!-- wp:block " + string(data) + " /-->"
}
