package devices

import (
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Directory resolves device identifiers to their delivery email addresses
type Directory struct {
	addresses map[string]string
	logger    *zap.Logger
}

// NewDirectory creates a new device directory
func NewDirectory(addresses map[string]string, logger *zap.Logger) *Directory {
	// Normalize identifiers (lowercase)
	normalized := make(map[string]string, len(addresses))
	for device, address := range addresses {
		normalized[strings.ToLower(strings.TrimSpace(device))] = strings.TrimSpace(address)
	}

	return &Directory{
		addresses: normalized,
		logger:    logger,
	}
}

// Lookup returns the address configured for device, ignoring case
func (d *Directory) Lookup(device string) (string, bool) {
	if len(d.addresses) == 0 {
		return "", false
	}

	address, ok := d.addresses[strings.ToLower(strings.TrimSpace(device))]
	if ok && d.logger != nil {
		d.logger.Debug("Resolved device address",
			zap.String("device", device),
			zap.String("address", address))
	}

	return address, ok
}

// Devices returns the known device identifiers in sorted order
func (d *Directory) Devices() []string {
	return sortedKeys(d.addresses)
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
