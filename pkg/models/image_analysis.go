package models

// VisualElement is one detected element within a creative image. Elements are
// owned by exactly one ImageAnalysis and have no identity of their own.
type VisualElement struct {
	Type        ElementType       `json:"type"`
	Description string            `json:"description"`
	Position    string            `json:"position,omitempty"`
	Color       string            `json:"color,omitempty"`
	TextContent string            `json:"text_content,omitempty"`
	Details     map[string]string `json:"details,omitempty"` // layout, color scheme, design notes
}

// DominantColor is one prominent color in a creative, tagged with its role.
type DominantColor struct {
	Color string `json:"color"`
	Role  string `json:"role,omitempty"` // "background", "accent", ...
}

// ImageAnalysis is the canonical flat analysis of one creative image.
// Upstream data carries two physical shapes (a structured slot layout and
// this flat one); the visual aggregator normalizes everything to this shape
// before correlation.
//
// Identity is (campaign id, image id). CampaignID is empty when filename
// extraction found no campaign token: unassociated images are analyzed and
// kept rather than dropped.
type ImageAnalysis struct {
	CampaignID          string          `json:"campaign_id,omitempty"`
	ImageID             string          `json:"image_id"`
	SourcePath          string          `json:"source_path,omitempty"`
	Elements            []VisualElement `json:"visual_elements"`
	DominantColors      []DominantColor `json:"dominant_colors"`
	CompositionAnalysis string          `json:"composition_analysis,omitempty"`
	OverallDescription  string          `json:"overall_description,omitempty"`
	TextContent         string          `json:"text_content,omitempty"`
	MarketingRelevance  string          `json:"marketing_relevance,omitempty"`
}

// EnsureDefaults fills missing optional containers with empty values so
// downstream aggregation never sees nil slices.
func (a *ImageAnalysis) EnsureDefaults() {
	if a.Elements == nil {
		a.Elements = []VisualElement{}
	}
	if a.DominantColors == nil {
		a.DominantColors = []DominantColor{}
	}
}
