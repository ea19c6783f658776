package evaluator

import (
	"encoding/json"
	"math"
)

// ValueToJSON marshals a Value to JSON bytes.
// Whole numbers are written without a decimal point.
func ValueToJSON(v Value) ([]byte, error) {
	return json.Marshal(valueToRaw(v))
}

// ValueToJSONString is a convenience that returns a string.
func ValueToJSONString(v Value) string {
	b, err := ValueToJSON(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// CommandsToJSON marshals a command log as a JSON array.
func CommandsToJSON(cmds []Command) ([]byte, error) {
	if cmds == nil {
		cmds = []Command{}
	}
	return json.Marshal(cmds)
}

type funcJSON struct {
	Func []string `json:"func"`
}

func valueToRaw(v Value) any {
	switch val := v.(type) {
	case Num:
		// JSON has no NaN or Inf.
		if math.IsNaN(val.Value) || math.IsInf(val.Value, 0) {
			return nil
		}
		if val.Value == math.Trunc(val.Value) && math.Abs(val.Value) < 1<<53 {
			return int64(val.Value)
		}
		return val.Value

	case Str:
		return val.Value

	case Func:
		params := val.Params
		if params == nil {
			params = []string{}
		}
		return funcJSON{Func: params}

	case Vector:
		items := make([]any, len(val.Items))
		for i, item := range val.Items {
			items[i] = valueToRaw(item)
		}
		return items

	case Command:
		return val
	}

	return nil
}
