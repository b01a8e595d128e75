package inventory

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeSerial canonicalizes a scanned serial number. Barcode scanners and
// manual entry produce mixed-width and mixed-case text; uniqueness is enforced
// over the normalized form.
func NormalizeSerial(raw string) string {
	s := norm.NFKC.String(raw)
	return strings.ToUpper(strings.TrimSpace(s))
}
