// Numeric and delimiter edge cases that don't fit naturally into
// toon_test.go or hit_test.go: NaN/Infinity scores, empty collections, and
// alternate delimiters. search_knowledge never emits NaN/Inf scores itself,
// but the encoder must still degrade gracefully if an index ever produces
// one.
package toon

import (
	"fmt"
	"math"
	"testing"
)

func TestErrorCases(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"array length mismatch", "arr[2]: 1,2,3", true},
		{"empty input", "", false}, // Should return empty object
	}
	
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("Decode() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSpecialValues(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"NaN", math.NaN()},
		{"Infinity", math.Inf(1)},
		{"Negative Infinity", math.Inf(-1)},
		{"Zero", 0.0},
		{"Negative Zero", math.Copysign(0, -1)},
		{"Large Number", 1e20},
		{"Small Number", 1e-20},
	}
	
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.input)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			
			// For NaN, it should be encoded as null
			if math.IsNaN(tt.input.(float64)) {
				if decoded != nil {
					t.Errorf("Expected null for %s, got %v", tt.name, decoded)
				}
				return
			}
			
			// For Infinity, check if it's handled (implementation may vary)
			if math.IsInf(tt.input.(float64), 0) {
				// Implementation converts Inf to null, but decoder may parse as string
				// This is acceptable behavior
				return
			}
		})
	}
}

func TestEmptyCollections(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
	}{
		{"empty object", map[string]interface{}{}},
		{"empty array", []interface{}{}},
		{"object with empty array", map[string]interface{}{"arr": []interface{}{}}},
		{"object with empty object", map[string]interface{}{"obj": map[string]interface{}{}}},
	}
	
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := Encode(tt.input)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			
			decoded, err := Decode(encoded)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			
			// Should round-trip correctly
			reencoded, err := Encode(decoded)
			if err != nil {
				t.Fatalf("Re-encode failed: %v", err)
			}
			
			if reencoded != encoded {
				t.Errorf("Round-trip failed for %s", tt.name)
			}
		})
	}
}

func TestDelimiters(t *testing.T) {
	tests := []struct {
		name      string
		delimiter string
		toonData  string
		expected  interface{}
	}{
		{
			"tab delimiter",
			"\t",
			"arr[2\t]: 1\t2",
			map[string]interface{}{"arr": []interface{}{float64(1), float64(2)}},
		},
		{
			"pipe delimiter",
			"|",
			"arr[2|]: 1|2",
			map[string]interface{}{"arr": []interface{}{float64(1), float64(2)}},
		},
	}
	
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := Decode(tt.toonData)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			
			if !deepEqual(decoded, tt.expected) {
				t.Errorf("Expected %+v, got %+v", tt.expected, decoded)
			}
		})
	}
}

// Helper function for deep comparison that handles float64 properly
func deepEqual(a, b interface{}) bool {
	// Simple implementation for test purposes
	return fmt.Sprintf("%+v", a) == fmt.Sprintf("%+v", b)
}