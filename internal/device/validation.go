package device

import (
	"fmt"
	"regexp"
	"strings"
)

// maxFriendlyNameLength keeps names well inside MQTT topic limits.
const maxFriendlyNameLength = 128

var ieeePattern = regexp.MustCompile(`^0x[0-9a-f]{16}$`)

// NormaliseIEEE lower-cases an IEEE address and adds the 0x prefix if missing.
func NormaliseIEEE(addr string) string {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !strings.HasPrefix(addr, "0x") {
		addr = "0x" + addr
	}
	return addr
}

// IsIEEEAddress reports whether s is a valid IEEE address in any case, with
// or without the 0x prefix.
func IsIEEEAddress(s string) bool {
	return ieeePattern.MatchString(NormaliseIEEE(s))
}

// ValidateDevice checks a device before it is stored.
// The IEEE address must already be normalised.
func ValidateDevice(d *Device) error {
	if !ieeePattern.MatchString(d.IEEEAddress) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, d.IEEEAddress)
	}
	if d.ModelID == "" {
		return fmt.Errorf("%w: model_id is required", ErrInvalidDevice)
	}
	return ValidateFriendlyName(d.FriendlyName)
}

// ValidateFriendlyName checks that a name can be used as an MQTT topic path.
// An empty name is allowed; the device is then addressed by IEEE address.
func ValidateFriendlyName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > maxFriendlyNameLength {
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidName, maxFriendlyNameLength)
	}
	if strings.ContainsAny(name, "+#") {
		return fmt.Errorf("%w: %q contains an MQTT wildcard", ErrInvalidName, name)
	}
	if strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") || strings.Contains(name, "//") {
		return fmt.Errorf("%w: %q has an empty topic segment", ErrInvalidName, name)
	}
	last := name[strings.LastIndex(name, "/")+1:]
	if last == "set" || last == "get" {
		return fmt.Errorf("%w: %q ends in a command segment", ErrInvalidName, name)
	}
	return nil
}
