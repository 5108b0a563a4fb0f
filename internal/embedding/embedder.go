package embedding

import "time"

// RequestTimeout is the hard per-request limit for embedding calls. A
// provider that cannot answer inside it fails the call and the recall
// pipeline degrades to lexical-only for that query variant.
const RequestTimeout = 10 * time.Second

// Embedder generates embedding vectors for text. Implementations trim the
// input before submission and treat an empty result vector as an error.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dimensions() int
}
