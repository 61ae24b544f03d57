package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName    string
	VectorField  string         // index alias of the vector field, "vector" when empty
	Distance     DistanceMetric // metric the index was built with, cosine when empty
	Vector       []float32
	K            int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hit. Score is cosine similarity in [0,1].
type SearchEntry struct {
	Key    string
	Score  float64
	Fields map[string]string
}

// Similarity converts a KNN distance into cosine similarity clamped to [0,1].
// Embeddings are unit length, so squared L2 equals 2 - 2cos and IP distance
// equals 1 - cos.
func Similarity(metric DistanceMetric, distance float64) float64 {
	sim := 1 - distance
	if metric == DistanceL2 {
		sim = 1 - distance/2
	}
	return min(1, max(0, sim))
}
