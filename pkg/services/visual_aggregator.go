package services

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/adpulse-io/insight-engine/pkg/models"
)

// structuredSlots are the named slots whose presence marks an analysis
// payload as the structured shape rather than the flat one.
var structuredSlots = []string{"header", "hero_image", "call_to_action_button", "product_images"}

// VisualAggregator normalizes the two physical analysis shapes found in
// upstream data into the canonical flat ImageAnalysis.
type VisualAggregator interface {
	// Normalize converts a raw analysis payload of either shape. The mapping
	// is deterministic: the same payload always yields the same result.
	Normalize(raw map[string]any, campaignID string, imageIndex int) *models.ImageAnalysis
}

type visualAggregator struct{}

// NewVisualAggregator creates a new VisualAggregator.
func NewVisualAggregator() VisualAggregator {
	return &visualAggregator{}
}

var _ VisualAggregator = (*visualAggregator)(nil)

func (a *visualAggregator) Normalize(raw map[string]any, campaignID string, imageIndex int) *models.ImageAnalysis {
	var analysis *models.ImageAnalysis
	if isStructured(raw) {
		analysis = flattenStructured(raw)
	} else {
		analysis = decodeFlat(raw)
	}

	analysis.CampaignID = campaignID
	if analysis.ImageID == "" {
		analysis.ImageID = fmt.Sprintf("image_%d", imageIndex)
	}
	analysis.EnsureDefaults()
	return analysis
}

func isStructured(raw map[string]any) bool {
	for _, slot := range structuredSlots {
		if _, ok := raw[slot]; ok {
			return true
		}
	}
	return false
}

// decodeFlat passes an already-flat payload through a JSON roundtrip so the
// element list and colors land in their typed form. Unknown fields drop.
func decodeFlat(raw map[string]any) *models.ImageAnalysis {
	var analysis models.ImageAnalysis

	data, err := json.Marshal(raw)
	if err != nil {
		return &analysis
	}
	// Malformed payloads degrade to an empty analysis.
	_ = json.Unmarshal(data, &analysis)

	for i := range analysis.Elements {
		analysis.Elements[i].Type = models.ParseElementType(string(analysis.Elements[i].Type))
	}
	return &analysis
}

// flattenStructured maps the slot layout onto the flat element list. Each
// slot contributes fixed element types; free-text slots feed the prose
// fields.
func flattenStructured(raw map[string]any) *models.ImageAnalysis {
	analysis := &models.ImageAnalysis{}
	var textParts []string

	header := getMap(raw, "header")

	if logo := getMap(header, "logo"); logo != nil {
		text := getString(logo, "text")
		tagline := getString(logo, "tagline")
		analysis.Elements = append(analysis.Elements, models.VisualElement{
			Type:        models.ElementLogo,
			Description: fmt.Sprintf("Logo: %s - %s", text, tagline),
			Position:    getString(logo, "position"),
			Color:       getString(logo, "color"),
		})
		if text != "" {
			textParts = append(textParts, text)
		}
		if tagline != "" {
			textParts = append(textParts, tagline)
		}
	}

	if nav := getMap(header, "navigation"); nav != nil {
		details := map[string]string{}
		if layout := getString(nav, "layout"); layout != "" {
			details["layout"] = layout
		}
		if scheme := getString(nav, "color_scheme"); scheme != "" {
			details["color_scheme"] = scheme
		}
		analysis.Elements = append(analysis.Elements, models.VisualElement{
			Type:        models.ElementNavigation,
			Description: "Navigation: " + strings.Join(getStringSlice(nav, "items"), ", "),
			Details:     details,
		})
	}

	heroDescription := ""
	if hero := getMap(raw, "hero_image"); hero != nil {
		heroDescription = getString(hero, "description")
		details := map[string]string{}
		if scheme := getString(hero, "color_scheme"); scheme != "" {
			details["color_scheme"] = scheme
		}
		if comp := getString(hero, "composition"); comp != "" {
			details["composition"] = comp
		}
		if elements := getStringSlice(hero, "elements"); len(elements) > 0 {
			details["elements"] = strings.Join(elements, ", ")
		}
		analysis.Elements = append(analysis.Elements, models.VisualElement{
			Type:        models.ElementHeroImage,
			Description: heroDescription,
			Details:     details,
		})
	}

	if cta := getMap(raw, "call_to_action_button"); cta != nil {
		text := getString(cta, "text")
		details := map[string]string{}
		if design := getString(cta, "design"); design != "" {
			details["design"] = design
		}
		analysis.Elements = append(analysis.Elements, models.VisualElement{
			Type:        models.ElementCTAButton,
			Description: "CTA: " + text,
			Position:    getString(cta, "position"),
			Color:       getString(cta, "color"),
			TextContent: text,
			Details:     details,
		})
		if text != "" {
			textParts = append(textParts, text)
		}
	}

	if products, ok := raw["product_images"].([]any); ok {
		for _, p := range products {
			pm, ok := p.(map[string]any)
			if !ok {
				continue
			}
			analysis.Elements = append(analysis.Elements, models.VisualElement{
				Type:        models.ElementProductImage,
				Description: getString(pm, "description"),
				Position:    getString(pm, "position"),
				Color:       getString(pm, "color"),
			})
		}
	}

	if bg := getMap(raw, "background"); bg != nil {
		if c := getString(bg, "main_color"); c != "" {
			analysis.DominantColors = append(analysis.DominantColors, models.DominantColor{Color: c, Role: "background"})
		}
		if c := getString(bg, "accent_color"); c != "" {
			analysis.DominantColors = append(analysis.DominantColors, models.DominantColor{Color: c, Role: "accent"})
		}
	}

	if layout := getStringSlice(raw, "layout_structure"); len(layout) > 0 {
		analysis.CompositionAnalysis = strings.Join(layout, "\n")
	}

	tone := getString(raw, "design_tone")
	switch {
	case tone != "" && heroDescription != "":
		analysis.OverallDescription = tone + " | " + heroDescription
	case tone != "":
		analysis.OverallDescription = tone
	default:
		analysis.OverallDescription = heroDescription
	}
	analysis.MarketingRelevance = tone
	analysis.TextContent = strings.Join(textParts, "\n")

	return analysis
}

func getMap(raw map[string]any, key string) map[string]any {
	if raw == nil {
		return nil
	}
	m, _ := raw[key].(map[string]any)
	return m
}

func getString(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", v)
	}
}

func getStringSlice(raw map[string]any, key string) []string {
	if raw == nil {
		return nil
	}
	items, ok := raw[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
