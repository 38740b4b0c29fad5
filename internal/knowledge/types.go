package knowledge

// Source type constants for knowledge documents.
const (
	// SourceTypeHandbook is indexed handbook/corpus content.
	SourceTypeHandbook = "handbook"

	// SourceTypeUpload is admin-uploaded supplementary material.
	SourceTypeUpload = "upload"
)

// Document is one stored knowledge chunk.
type Document struct {
	ID         string
	Content    string
	Metadata   map[string]string
	SourceType string
}

// Result is a search hit with its cosine similarity in [0, 1].
type Result struct {
	Document   Document
	Similarity float64
}

// SearchOption configures a Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	topK       int
	sourceType string
}

// WithTopK sets how many results to return. Values outside [1, 50]
// fall back to the default.
func WithTopK(k int) SearchOption {
	return func(o *searchOptions) {
		if k >= 1 && k <= 50 {
			o.topK = k
		}
	}
}

// WithSourceType restricts results to one source type.
func WithSourceType(sourceType string) SearchOption {
	return func(o *searchOptions) {
		o.sourceType = sourceType
	}
}
