package translation

import (
	"encoding/json"
	"fmt"

	"github.com/teilomillet/gollm"

	"github.com/tarjuman/tarjuman/errors"
)

// Result is the body returned to the client on success.
type Result struct {
	Casual       string `json:"casual"`
	Professional string `json:"professional"`
}

// Decoder parses raw model output into a Result.
type Decoder struct {
	// CleanJSON strips markdown code fences before parsing.
	CleanJSON bool
}

// Decode checks that raw is a JSON object with string fields casual and
// professional. Any other shape is a decode_error naming what was wrong;
// extra keys are dropped.
func (d Decoder) Decode(raw string) (*Result, error) {
	if d.CleanJSON {
		raw = gollm.CleanResponse(raw)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, errors.NewDecodeError("", map[string]interface{}{
			"reason": "invalid_json",
		}, fmt.Errorf("model output is not a JSON object: %w", err))
	}
	if obj == nil {
		return nil, errors.NewDecodeError("", map[string]interface{}{
			"reason": "not_object",
		}, fmt.Errorf("model output is null"))
	}

	var res Result
	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"casual", &res.Casual},
		{"professional", &res.Professional},
	} {
		v, ok := obj[f.name]
		if !ok {
			return nil, errors.NewDecodeError("", map[string]interface{}{
				"field":  f.name,
				"reason": "missing",
			}, fmt.Errorf("model output has no %q field", f.name))
		}
		if err := json.Unmarshal(v, f.dst); err != nil || string(v) == "null" {
			return nil, errors.NewDecodeError("", map[string]interface{}{
				"field":  f.name,
				"reason": "not_string",
			}, fmt.Errorf("model output field %q is not a string: %s", f.name, v))
		}
	}

	return &res, nil
}
