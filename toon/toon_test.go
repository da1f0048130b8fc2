package toon

import (
	"reflect"
	"testing"
)

func TestEncodeBasicTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    interface{}
		expected string
	}{
		{"null", nil, "null"},
		{"true", true, "true"},
		{"false", false, "false"},
		{"integer", float64(42), "42"},
		{"float", 3.14, "3.14"},
		{"string", "hello", "hello"},
		{"quoted string", "hello world", "hello world"},
		{"empty object", map[string]interface{}{}, ""},
		{"empty array", []interface{}{}, "[0]:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Encode(tt.input)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestDecodeBasicTypes(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected interface{}
	}{
		{"null", "null", nil},
		{"true", "true", true},
		{"false", "false", false},
		{"integer", "42", float64(42)},
		{"float", "3.14", 3.14},
		{"string", "hello", "hello"},
		{"quoted string", "\"hello world\"", "hello world"},
		{"empty object", "", map[string]interface{}{}},
		{"empty array", "[0]:", []interface{}{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := Decode(tt.input)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !reflect.DeepEqual(result, tt.expected) {
				if resultSlice, ok := result.([]interface{}); ok {
					if expectedSlice, ok := tt.expected.([]interface{}); ok && len(resultSlice) == 0 && len(expectedSlice) == 0 {
						return
					}
				}
				t.Errorf("Expected %+v, got %+v", tt.expected, result)
			}
		})
	}
}

func TestStringQuoting(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "\"\""},
		{"hello", "hello"},
		{"hello world", "hello world"},
		{"true", "\"true\""},
		{"false", "\"false\""},
		{"null", "\"null\""},
		{"42", "\"42\""},
		{"3.14", "\"3.14\""},
		{"-5", "\"-5\""},
		{"with:colon", "\"with:colon\""},
		{"with\"quote", "\"with\\\"quote\""},
		{"with\\backslash", "\"with\\\\backslash\""},
		{"with\nnewline", "\"with\\nnewline\""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			encoder := &encoder{indentSize: 2}
			result := encoder.encodeString(tt.input)
			if result != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, result)
			}
		})
	}
}

func TestRoundTripNestedStructures(t *testing.T) {
	input := map[string]interface{}{
		"name":        "search_knowledge",
		"description": "Search the knowledge corpus",
		"score":       1.0,
		"metadata": map[string]interface{}{
			"source": "books",
			"tags":   []interface{}{"nutrition", "supplements"},
		},
	}

	encoded, err := Encode(input)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}

	if !reflect.DeepEqual(decoded, input) {
		t.Errorf("round-trip mismatch:\nwant: %+v\ngot:  %+v", input, decoded)
	}

	reencoded, err := Encode(decoded)
	if err != nil {
		t.Fatalf("re-encode failed: %v", err)
	}
	if reencoded != encoded {
		t.Errorf("re-encoding a decoded value changed its output:\nfirst:  %s\nsecond: %s", encoded, reencoded)
	}
}

func TestDecodeErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"array length mismatch", "arr[2]: 1,2,3", true},
		{"garbage header", "[[not a number]]:", true},
		{"empty input decodes to empty object", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
		})
	}
}

func TestEncodeDelimiterQuoting(t *testing.T) {
	data := map[string]interface{}{
		"pipe_value":  "has|pipe",
		"comma_value": "has,comma",
	}
	encoded, err := Encode(data)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// needsQuoting treats ',' and '|' as delimiter characters in every
	// context, so both values are quoted even as plain object fields.
	if !containsLine(encoded, `comma_value: "has,comma"`) {
		t.Errorf("expected quoted comma value in output, got: %s", encoded)
	}
	if !containsLine(encoded, `pipe_value: "has|pipe"`) {
		t.Errorf("expected quoted pipe value in output, got: %s", encoded)
	}
}

func containsLine(haystack, line string) bool {
	for _, l := range splitLines(haystack) {
		if l == line {
			return true
		}
	}
	return false
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}
