package models

// MatchCandidate is one hit returned by the image similarity service.
type MatchCandidate struct {
	Reference  string  `json:"image"`      // service-relative image reference
	Similarity float64 `json:"similarity"` // percent, higher is closer
}

// Match is a report correlated from a candidate.
type Match struct {
	Report     Report  `json:"report"`
	Reference  string  `json:"reference"`
	Similarity float64 `json:"similarity"`
}

// ImageHit is one nearest-neighbour result from the embedding index.
type ImageHit struct {
	Key   string  `json:"key"`
	Score float32 `json:"score"` // cosine similarity
}
