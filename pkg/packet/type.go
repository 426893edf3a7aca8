package packet

// Type classifies a packet.
type Type int

const (
	TypeData Type = iota
	TypeDetection
	TypeCalibration
	TypeTiming
	TypeMessage
	TypeGeneral
	TypeRequest
	TypeInfo
	TypeInfoTerminated
	TypeKeepalive
)

// String returns the display name of the type.
func (t Type) String() string {
	switch t {
	case TypeData:
		return "Data"
	case TypeDetection:
		return "Detection"
	case TypeCalibration:
		return "Calibration"
	case TypeTiming:
		return "Timing"
	case TypeMessage:
		return "Message"
	case TypeGeneral:
		return "General"
	case TypeRequest:
		return "Request"
	case TypeInfo:
		return "Info"
	case TypeInfoTerminated:
		return "Info (terminated)"
	case TypeKeepalive:
		return "KeepAlive"
	default:
		return "Unknown"
	}
}

// Known reports whether t is one of the defined types.
func (t Type) Known() bool {
	return t >= TypeData && t <= TypeKeepalive
}
