package domain

// KeyPrefix namespaces every key listbot writes to the KV / search store.
const KeyPrefix = "listbot:"

// VectorConfig holds vectorization settings of the corpus.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string
}

// DefaultVectorConfig matches the corpus produced by the offline embedding job
// (text-embedding-004, 768 dimensions, cosine).
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "text-embedding-004",
		Dimensions:     768,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
