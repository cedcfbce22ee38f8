package protocol

// ValueSelector is a named abstract channel a message type can expose or
// accept. The expected kind travels with the selector as data, so kind
// checks are plain comparisons.
type ValueSelector struct {
	Name string
	Kind ValueKind
}

// Selector catalogue
var (
	SelectorRawData        = ValueSelector{Name: "RawData", Kind: KindString}
	SelectorCommand        = ValueSelector{Name: "Command", Kind: KindBoolean}
	SelectorSignalLevel    = ValueSelector{Name: "SignalLevel", Kind: KindNumber}
	SelectorDimmingLevel   = ValueSelector{Name: "DimmingLevel", Kind: KindPercent}
	SelectorStatus         = ValueSelector{Name: "Status", Kind: KindString}
	SelectorMood           = ValueSelector{Name: "Mood", Kind: KindNumber}
	SelectorShutter        = ValueSelector{Name: "Shutter", Kind: KindPercent}
	SelectorMotion         = ValueSelector{Name: "Motion", Kind: KindBoolean}
	SelectorContact        = ValueSelector{Name: "Contact", Kind: KindBoolean}
	SelectorTemperature    = ValueSelector{Name: "Temperature", Kind: KindNumber}
	SelectorHumidity       = ValueSelector{Name: "Humidity", Kind: KindNumber}
	SelectorHumidityStatus = ValueSelector{Name: "HumidityStatus", Kind: KindString}
	SelectorBatteryLevel   = ValueSelector{Name: "BatteryLevel", Kind: KindNumber}
	SelectorPressure       = ValueSelector{Name: "Pressure", Kind: KindNumber}
	SelectorForecast       = ValueSelector{Name: "Forecast", Kind: KindString}
	SelectorRainRate       = ValueSelector{Name: "RainRate", Kind: KindNumber}
	SelectorRainTotal      = ValueSelector{Name: "RainTotal", Kind: KindNumber}
	SelectorWindDirection  = ValueSelector{Name: "WindDirection", Kind: KindNumber}
	SelectorWindSpeed      = ValueSelector{Name: "WindSpeed", Kind: KindNumber}
	SelectorGust           = ValueSelector{Name: "Gust", Kind: KindNumber}
	SelectorChillFactor    = ValueSelector{Name: "ChillFactor", Kind: KindNumber}
	SelectorInstantPower   = ValueSelector{Name: "InstantPower", Kind: KindNumber}
	SelectorTotalUsage     = ValueSelector{Name: "TotalUsage", Kind: KindNumber}
	SelectorInstantAmps    = ValueSelector{Name: "InstantAmps", Kind: KindNumber}
	SelectorTotalAmpHours  = ValueSelector{Name: "TotalAmpHours", Kind: KindNumber}
	SelectorVoltage        = ValueSelector{Name: "Voltage", Kind: KindNumber}
	SelectorSetPoint       = ValueSelector{Name: "SetPoint", Kind: KindNumber}
)

var selectorCatalogue = []ValueSelector{
	SelectorRawData,
	SelectorCommand,
	SelectorSignalLevel,
	SelectorDimmingLevel,
	SelectorStatus,
	SelectorMood,
	SelectorShutter,
	SelectorMotion,
	SelectorContact,
	SelectorTemperature,
	SelectorHumidity,
	SelectorHumidityStatus,
	SelectorBatteryLevel,
	SelectorPressure,
	SelectorForecast,
	SelectorRainRate,
	SelectorRainTotal,
	SelectorWindDirection,
	SelectorWindSpeed,
	SelectorGust,
	SelectorChillFactor,
	SelectorInstantPower,
	SelectorTotalUsage,
	SelectorInstantAmps,
	SelectorTotalAmpHours,
	SelectorVoltage,
	SelectorSetPoint,
}

// Selectors returns the full catalogue in display order
func Selectors() []ValueSelector {
	out := make([]ValueSelector, len(selectorCatalogue))
	copy(out, selectorCatalogue)
	return out
}

// ParseValueSelector resolves a selector by its catalogue name (case-sensitive)
func ParseValueSelector(name string) (ValueSelector, error) {
	for _, s := range selectorCatalogue {
		if s.Name == name {
			return s, nil
		}
	}
	return ValueSelector{}, newError(ErrTypeUnknownName, PacketTypeUnknown, "value selector %q", name)
}

// As returns the selector requesting a different value kind, as when a host
// item of another type is bound to the channel
func (s ValueSelector) As(kind ValueKind) ValueSelector {
	s.Kind = kind
	return s
}

func (s ValueSelector) String() string { return s.Name }

// checkSelector resolves sel against a message type's advertised set.
// Names decide support; the kind must then equal the advertised kind.
func checkSelector(pt PacketType, supported []ValueSelector, sel ValueSelector) error {
	for _, s := range supported {
		if s.Name != sel.Name {
			continue
		}
		if s.Kind != sel.Kind {
			return newError(ErrTypeKindMismatch, pt, "%s produces %s for %s, not %s", pt, s.Kind, s.Name, sel.Kind)
		}
		return nil
	}
	return newError(ErrTypeUnsupportedSelector, pt, "%s does not support %s", pt, sel.Name)
}

// checkValue verifies a command value carries the selector's kind
func checkValue(pt PacketType, sel ValueSelector, value State) error {
	if value.Kind() != sel.Kind {
		return newError(ErrTypeKindMismatch, pt, "%s expects a %s value, got %s", sel.Name, sel.Kind, value.Kind())
	}
	return nil
}
