// Package toon implements TOON (Token-Oriented Object Notation), a
// line-oriented, indentation-based text format that encodes the JSON data
// model with explicit structure and minimal quoting. search_knowledge (in
// internal/knowledgetools) uses it as an alternate, token-cheaper rendering
// of its ranked hit list when a caller passes format:"toon".
package toon

// Encode renders v as TOON text.
func Encode(v interface{}) (string, error) {
	encoder := &encoder{indentSize: 2, delimiter: ","}
	normalized, err := normalizeValue(v)
	if err != nil {
		return "", err
	}
	return encoder.encode(normalized, 0)
}

// Decode parses TOON text back into the JSON data model (maps, slices,
// strings, float64, bool, nil) — the inverse of Encode.
func Decode(data string) (interface{}, error) {
	decoder := &decoder{strict: true}
	return decoder.decode(data)
}
