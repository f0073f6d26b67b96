package detection

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

// wrapperKeys are object keys some models wrap the result array in
var wrapperKeys = []string{"detections", "results", "items", "pii", "data"}

// Decode turns a raw model reply into detections. A reply that is not a JSON
// array (or an object wrapping one) fails with KindMalformedResponse. Inside a
// valid array, bad fields degrade per item instead of failing the page.
func Decode(raw string) ([]redaction.Detection, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, malformed(fmt.Errorf("empty response"))
	}

	items, err := decodeItems([]byte(body))
	if err != nil {
		return nil, malformed(err)
	}

	detections := make([]redaction.Detection, 0, len(items))
	for _, item := range items {
		var obj map[string]any
		if err := json.Unmarshal(item, &obj); err != nil || obj == nil {
			continue
		}
		category, _ := redaction.ParseCategory(stringify(obj["category"]))
		detections = append(detections, redaction.Detection{
			Text:     stringify(obj["text"]),
			Category: category,
			Box:      decodeBox(obj["box_2d"]),
		})
	}
	return detections, nil
}

func decodeItems(body []byte) ([]json.RawMessage, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err == nil {
		return items, nil
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	for _, key := range wrapperKeys {
		if inner, ok := wrapper[key]; ok {
			if err := json.Unmarshal(inner, &items); err == nil {
				return items, nil
			}
		}
	}
	// A lone detection object
	if _, ok := wrapper["box_2d"]; ok {
		return []json.RawMessage{body}, nil
	}
	return nil, fmt.Errorf("response is not a JSON array")
}

// stripFences removes a markdown code fence around the payload
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// decodeBox accepts four numbers (or numeric strings); anything else is a zero box
func decodeBox(v any) redaction.NormalizedBox {
	arr, ok := v.([]any)
	if !ok || len(arr) != 4 {
		return redaction.NormalizedBox{}
	}
	vals := make([]float64, 4)
	for i, e := range arr {
		switch n := e.(type) {
		case float64:
			vals[i] = n
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return redaction.NormalizedBox{}
			}
			vals[i] = f
		default:
			return redaction.NormalizedBox{}
		}
	}
	return redaction.BoxFromSlice(vals)
}

func malformed(err error) error {
	return redaction.NewError(redaction.KindMalformedResponse, "decode", err)
}
