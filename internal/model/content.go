package model

// ContentItem is a single piece of content that can be recommended.
type ContentItem struct {
	// ID is the stable identifier of the item within the catalog.
	ID string `json:"id" yaml:"id"`

	// Title is the human-readable headline.
	Title string `json:"title" yaml:"title"`

	// Description is the full, untouched description text.
	Description string `json:"description" yaml:"description"`

	// ImageURL points at the item's cover image.
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`

	// SourceRelevance scores (0-100) how relevant the item is for users
	// arriving from each source. Missing sources are treated as 0.
	SourceRelevance map[Source]int `json:"source_relevance" yaml:"source_relevance"`

	// Tags are free-form topic labels.
	Tags []string `json:"tags" yaml:"tags"`
}

// Relevance returns the item's relevance for src, or 0 when unset.
func (c ContentItem) Relevance(src Source) int {
	return c.SourceRelevance[src]
}
