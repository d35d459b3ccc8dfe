package ingest

import "strings"

// Canonical column names.
const (
	ColSNO            = "sno"
	ColProductName    = "product_name"
	ColInputImageURLs = "input_image_urls"
)

// Known spellings of the canonical columns after the mechanical rewrite.
// No canonical name may appear as a key here.
var headerAliases = map[string]string{
	"s_no":            ColSNO,
	"serial_no":       ColSNO,
	"serial_number":   ColSNO,
	"product":         ColProductName,
	"input_image_url": ColInputImageURLs,
}

// StandardizeHeader strips '.', turns spaces into '_', lowercases, then resolves aliases.
// StandardizeHeader(StandardizeHeader(h)) == StandardizeHeader(h).
func StandardizeHeader(h string) string {
	h = strings.TrimSpace(h)
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(h)
	h = strings.ReplaceAll(h, ".", "")
	h = strings.ReplaceAll(h, " ", "_")
	h = strings.ToLower(h)
	h = strings.TrimSpace(h)
	if canon, ok := headerAliases[h]; ok {
		return canon
	}
	return h
}
