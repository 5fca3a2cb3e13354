package repair

import "strings"

// componentKeywords are the part names we recognize inside issue
// descriptions, most specific first.
var componentKeywords = []string{
	"chuck", "trigger", "carburetor", "compressor", "thermostat",
	"heating element", "drive belt", "belt", "motor", "pump", "impeller",
	"screen", "display", "battery", "charger", "power supply", "cord",
	"cable", "switch", "button", "hinge", "handle", "wheel", "blade",
	"filter", "gasket", "seal", "hose", "valve", "fan", "bearing",
	"spring", "gear", "clutch", "brake", "chain", "zipper", "strap",
	"lens", "speaker", "microphone", "antenna", "keyboard", "trackpad",
}

// extractComponent finds the first known part name mentioned in the issue
// list, so searches target the broken part instead of the whole item.
func extractComponent(issues []string) string {
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		for _, kw := range componentKeywords {
			if strings.Contains(lower, kw) {
				return kw
			}
		}
	}
	return ""
}

func itemName(item Item) string {
	parts := make([]string, 0, 3)
	if item.Brand != "" && !strings.EqualFold(item.Brand, "unknown") {
		parts = append(parts, item.Brand)
	}
	if item.Model != "" && !strings.EqualFold(item.Model, "unknown") &&
		!strings.EqualFold(item.Model, "not found") {
		parts = append(parts, item.Model)
	}
	parts = append(parts, item.Object)
	return strings.Join(parts, " ")
}

// BuildRepairQuery produces the how-to-fix search string for an item.
func BuildRepairQuery(item Item) string {
	name := itemName(item)
	if component := extractComponent(item.Issues); component != "" {
		return "how to fix " + name + " " + component
	}
	if len(item.Issues) > 0 {
		return "how to fix " + name + " " + strings.ToLower(item.Issues[0])
	}
	return name + " repair guide"
}

// BuildPartsQuery produces the replacement-part search string.
func BuildPartsQuery(item Item) string {
	name := itemName(item)
	if component := extractComponent(item.Issues); component != "" {
		return name + " replacement " + component
	}
	return name + " replacement parts"
}

// BuildGuideQuery targets dedicated repair guide sites.
func BuildGuideQuery(item Item) string {
	return itemName(item) + " repair site:ifixit.com"
}
