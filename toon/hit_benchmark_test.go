package toon

import "testing"

func benchmarkHits() []interface{} {
	hits := make([]interface{}, 0, 20)
	for i := 0; i < 20; i++ {
		hits = append(hits, hitMap(
			"Electrolyte balance affects endurance performance.",
			0.9-float64(i)*0.01,
			"books",
			"Nutrition Basics",
			"2021-01-01",
			"",
		))
	}
	return hits
}

func BenchmarkEncodeHitList(b *testing.B) {
	hits := benchmarkHits()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Encode(hits); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeHitList(b *testing.B) {
	encoded, err := Encode(benchmarkHits())
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := Decode(encoded); err != nil {
			b.Fatal(err)
		}
	}
}
