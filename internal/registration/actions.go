package registration

import (
	"strings"

	"github.com/crossfellowship/registrar/internal/applicants"
)

// Button actions carried in inline keyboard callbacks.
const (
	actionLanguagePrefix = "lang_"
	actionTypePrefix     = "type_"
	actionAddressPrefix  = "addr_"
	ActionWorshipYes     = "worship_yes"
	ActionWorshipNo      = "worship_no"
	ActionInterestYes    = "mission_interest_yes"
	ActionInterestNo     = "mission_interest_no"
	ActionSubmit         = "submit"
	ActionCancel         = "cancel"
)

// CommandStart restarts the conversation.
const CommandStart = "start"

// SkipToken skips the optional photo step.
const SkipToken = "skip"

func languageAction(code string) string {
	return actionLanguagePrefix + code
}

func typeAction(t applicants.Type) string {
	return actionTypePrefix + string(t)
}

func addressAction(subcity string) string {
	return actionAddressPrefix + subcity
}

func parseLanguageAction(action string) (string, bool) {
	code, ok := strings.CutPrefix(action, actionLanguagePrefix)
	if !ok {
		return "", false
	}
	return ResolveLanguage(code)
}

func parseTypeAction(action string) (applicants.Type, bool) {
	raw, ok := strings.CutPrefix(action, actionTypePrefix)
	if !ok {
		return "", false
	}
	t := applicants.Type(raw)
	return t, t.Valid()
}

func parseAddressAction(action string) (string, bool) {
	subcity, ok := strings.CutPrefix(action, actionAddressPrefix)
	if !ok || !isSubcity(subcity) {
		return "", false
	}
	return subcity, true
}

func parseYesNo(action, yes, no string) (bool, bool) {
	switch action {
	case yes:
		return true, true
	case no:
		return false, true
	default:
		return false, false
	}
}
