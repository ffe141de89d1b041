package core

import "strings"

// LabelKind is the command a label stands for
type LabelKind int

const (
	LabelUnknown LabelKind = iota
	LabelIngest
	LabelDeviceSend
)

func (k LabelKind) String() string {
	switch k {
	case LabelIngest:
		return "ingest"
	case LabelDeviceSend:
		return "device_send"
	default:
		return "unknown"
	}
}

// Label is a parsed classification label
type Label struct {
	Raw    string
	Kind   LabelKind
	Device string
}

// LabelParser turns free-form labels into Label values
type LabelParser struct {
	IngestLabel  string
	DevicePrefix string
}

// NewLabelParser creates a parser for the given label vocabulary
func NewLabelParser(ingestLabel, devicePrefix string) LabelParser {
	return LabelParser{
		IngestLabel:  ingestLabel,
		DevicePrefix: devicePrefix,
	}
}

// Parse classifies a single label. Device labels carry the word after the
// last space as the device identifier.
func (p LabelParser) Parse(raw string) Label {
	switch {
	case raw == p.IngestLabel:
		return Label{Raw: raw, Kind: LabelIngest}
	case p.DevicePrefix != "" && strings.HasPrefix(raw, p.DevicePrefix):
		device := raw[strings.LastIndex(raw, " ")+1:]
		if device == "" {
			return Label{Raw: raw, Kind: LabelUnknown}
		}
		return Label{Raw: raw, Kind: LabelDeviceSend, Device: device}
	default:
		return Label{Raw: raw, Kind: LabelUnknown}
	}
}
