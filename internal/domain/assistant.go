package domain

// AssistantType selects one of the four assistant behaviours. Each type has
// its own prompt strategy and its own conversation store.
type AssistantType string

const (
	AssistantBasic          AssistantType = "basique"
	AssistantBiblio         AssistantType = "biblio"
	AssistantClinical       AssistantType = "clinique"
	AssistantAdministrative AssistantType = "administrative"
)

// AssistantTypes lists every valid assistant type.
func AssistantTypes() []AssistantType {
	return []AssistantType{
		AssistantBasic,
		AssistantBiblio,
		AssistantClinical,
		AssistantAdministrative,
	}
}

// ParseAssistantType validates a raw string coming from a boundary (route
// parameter, CLI flag). Unknown values are rejected before any external call.
func ParseAssistantType(raw string) (AssistantType, error) {
	t := AssistantType(raw)
	if !isValidAssistantType(t) {
		return "", ErrUnknownAssistantType
	}
	return t, nil
}

func isValidAssistantType(t AssistantType) bool {
	switch t {
	case AssistantBasic, AssistantBiblio, AssistantClinical, AssistantAdministrative:
		return true
	}
	return false
}
