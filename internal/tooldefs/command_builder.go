package tooldefs

import (
	"fmt"
	"sort"
)

// BuildCommand is a pure function: (definition, parameter map) -> argv plus
// an optional stdin payload. It never has side effects and is deterministic:
// the same def and params always produce the same argv.
//
// Emission rules, applied in this exact order for every entry in params:
//  1. key unknown to def.Parameters -> ignored.
//  2. known key with empty value (nil or "") -> skipped.
//  3. kind stdin -> reserved as the stdin payload, not emitted to argv.
//  4. kind raw-passthrough -> bool-true emits the parameter's Flag (nothing
//     if it has none); otherwise the stringified value is emitted with no
//     flag.
//  5. kind positional -> deferred to the end.
//  6. kind boolean-flag -> the flag is emitted only when the value is truthy.
//  7. otherwise (flag-with-value) -> the flag followed by the stringified value.
//  8. finally, every positional value is appended, in key-sorted order.
func BuildCommand(def Definition, params map[string]interface{}) (argv []string, stdin string, err error) {
	argv = append(argv, def.Binary)
	argv = append(argv, def.DefaultArgs...)

	var positional []string

	// Map iteration order is randomized by the runtime; emission must be a
	// deterministic function of (def, params) alone, so keys are visited in
	// sorted order rather than map order. Consequence: rule 8's positional
	// values come out in key-sorted order, not the caller's original
	// insertion order — params is a map, which has none to preserve.
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := params[key]
		pd, known := def.Parameters[key]
		if !known {
			continue // rule 1
		}
		if isEmptyValue(value) {
			continue // rule 2
		}
		switch pd.Kind {
		case KindStdin:
			stdin = stringify(value) // rule 3
			continue
		case KindRaw:
			if b, ok := value.(bool); ok {
				if b {
					if pd.Flag != "" {
						argv = append(argv, pd.Flag)
					}
				} else {
					argv = append(argv, stringify(value)) // rule 4: "otherwise" still stringifies
				}
				continue
			}
			argv = append(argv, stringify(value)) // rule 4
			continue
		case KindPositional:
			positional = append(positional, stringify(value)) // rule 5, deferred
			continue
		case KindBoolean:
			if truthy(value) {
				argv = append(argv, pd.Flag) // rule 6
			}
			continue
		default:
			argv = append(argv, pd.Flag, stringify(value)) // rule 7
		}
	}

	argv = append(argv, positional...) // rule 8

	return argv, stdin, nil
}

// BuildBashCommand builds the argv for the reserved synthetic bash tool:
// argv = [shell-interpreter, "-c", command].
func BuildBashCommand(command string) []string {
	return []string{"sh", "-c", command}
}

func isEmptyValue(v interface{}) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok && s == "" {
		return true
	}
	return false
}

func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t != "" && t != "false" && t != "0"
	default:
		return v != nil
	}
}

func stringify(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
