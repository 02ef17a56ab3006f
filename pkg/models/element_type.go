package models

// ElementType classifies a visual element. The vocabulary is open: upstream
// detectors emit arbitrary type strings, so unknown values are preserved
// as-is rather than rejected; Known reports whether a value is one of the
// recognized constants.
type ElementType string

const (
	ElementLogo         ElementType = "logo"
	ElementNavigation   ElementType = "navigation"
	ElementHeroImage    ElementType = "hero_image"
	ElementCTAButton    ElementType = "cta_button"
	ElementProductImage ElementType = "product_image"
	ElementHeader       ElementType = "header"
	ElementBackground   ElementType = "background"
	ElementText         ElementType = "text"
)

var knownElementTypes = map[ElementType]struct{}{
	ElementLogo:         {},
	ElementNavigation:   {},
	ElementHeroImage:    {},
	ElementCTAButton:    {},
	ElementProductImage: {},
	ElementHeader:       {},
	ElementBackground:   {},
	ElementText:         {},
}

// ParseElementType maps a raw detector string onto the recognized vocabulary,
// falling through to the raw value for unseen types.
func ParseElementType(raw string) ElementType {
	t := ElementType(raw)
	if _, ok := knownElementTypes[t]; ok {
		return t
	}
	// Common synonyms observed in detector output.
	switch raw {
	case "call_to_action_button", "cta", "call_to_action":
		return ElementCTAButton
	case "hero", "hero_section":
		return ElementHeroImage
	case "nav", "menu":
		return ElementNavigation
	}
	return t
}

// Known reports whether the type is part of the recognized vocabulary.
func (t ElementType) Known() bool {
	_, ok := knownElementTypes[t]
	return ok
}

func (t ElementType) String() string {
	return string(t)
}
