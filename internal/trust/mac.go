package trust

import (
	"fmt"
	"regexp"
	"strings"
)

// macPattern matches a 6-octet MAC address with ':' or '-' delimiters
var macPattern = regexp.MustCompile(`^[0-9A-Fa-f]{2}(:[0-9A-Fa-f]{2}){5}$|^[0-9A-Fa-f]{2}(-[0-9A-Fa-f]{2}){5}$`)

// CanonicalizeMAC validates a MAC address and returns its canonical
// form: uppercase hex pairs joined with colons.
func CanonicalizeMAC(mac string) (string, error) {
	trimmed := strings.TrimSpace(mac)
	if !macPattern.MatchString(trimmed) {
		return "", fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}

	canonical := strings.ToUpper(strings.ReplaceAll(trimmed, "-", ":"))
	return canonical, nil
}
