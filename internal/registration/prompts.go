package registration

import (
	"html"
	"strings"

	"github.com/crossfellowship/registrar/internal/applicants"
	"github.com/crossfellowship/registrar/internal/channel"
)

func welcomePrompt() channel.Prompt {
	return channel.Prompt{
		Text: Text(LangEnglish, MsgWelcome) + "\n\n" + Text(LangAmharic, MsgWelcome),
		Buttons: channel.ButtonRows(
			channel.Button{Label: "🇬🇧 English", Action: languageAction(LangEnglish)},
			channel.Button{Label: "🇪🇹 አማርኛ", Action: languageAction(LangAmharic)},
		),
	}
}

func alreadyRegisteredPrompt() channel.Prompt {
	return channel.Prompt{
		Text: Text(LangEnglish, MsgAlreadyRegistered) + "\n\n" + Text(LangAmharic, MsgAlreadyRegistered),
	}
}

func mainMenuPrompt(lang string) channel.Prompt {
	return channel.Prompt{
		Text: Text(lang, MsgMainMenu),
		Buttons: channel.ButtonRows(
			channel.Button{Label: Text(lang, MsgTypeSinger), Action: typeAction(applicants.TypeSinger)},
			channel.Button{Label: Text(lang, MsgTypeMission), Action: typeAction(applicants.TypeMission)},
		),
	}
}

func textPrompt(lang string, key MessageKey) channel.Prompt {
	return channel.Prompt{Text: Text(lang, key)}
}

func phonePrompt(lang string, key MessageKey) channel.Prompt {
	return channel.Prompt{Text: Text(lang, key), ContactRequest: Text(lang, MsgShareContact)}
}

func addressPrompt(lang string) channel.Prompt {
	buttons := make([]channel.Button, 0, len(Subcities))
	for _, c := range Subcities {
		buttons = append(buttons, channel.Button{Label: c, Action: addressAction(c)})
	}
	return channel.Prompt{Text: Text(lang, MsgAskAddress), Buttons: channel.ButtonRows(buttons...)}
}

func yesNoPrompt(lang string, key MessageKey, yes, no string) channel.Prompt {
	return channel.Prompt{
		Text: Text(lang, key),
		Buttons: channel.ButtonRows(
			channel.Button{Label: Text(lang, MsgYes), Action: yes},
			channel.Button{Label: Text(lang, MsgNo), Action: no},
		),
	}
}

// stepPrompt is the question asked on entering step.
func stepPrompt(lang string, step Step) channel.Prompt {
	switch step {
	case StepName:
		return textPrompt(lang, MsgAskName)
	case StepChurch:
		return textPrompt(lang, MsgAskChurch)
	case StepPhone:
		return phonePrompt(lang, MsgAskPhone)
	case StepAddress:
		return addressPrompt(lang)
	case StepWorshipMinistry:
		return yesNoPrompt(lang, MsgAskWorship, ActionWorshipYes, ActionWorshipNo)
	case StepProfession:
		return textPrompt(lang, MsgAskProfession)
	case StepMissionInterest:
		return yesNoPrompt(lang, MsgAskInterest, ActionInterestYes, ActionInterestNo)
	case StepBio:
		return textPrompt(lang, MsgAskBio)
	case StepMotivation:
		return textPrompt(lang, MsgAskMotivation)
	case StepPhoto:
		return textPrompt(lang, MsgAskPhoto)
	case StepAudio:
		return textPrompt(lang, MsgAskAudio)
	default:
		return channel.Prompt{}
	}
}

// reviewPrompt renders the summary of a draft with confirm and cancel actions.
func reviewPrompt(lang string, d Draft) channel.Prompt {
	var b strings.Builder
	b.WriteString(Text(lang, MsgReviewTitle))
	b.WriteString("\n\n")

	base := d.Base()
	line := func(icon string, label MessageKey, value string) {
		b.WriteString(icon)
		b.WriteString(" ")
		b.WriteString(Text(lang, label))
		b.WriteString(": ")
		b.WriteString(value)
		b.WriteString("\n")
	}

	switch draft := d.(type) {
	case *SingerDraft:
		b.WriteString("🎤 " + Text(lang, LabelSingerRegistration) + "\n\n")
		writeCommon(line, base)
		line("🙏", LabelWorship, yesNo(lang, draft.WorshipMinistryInvolved))
		line("📸", LabelPhoto, check(base.PhotoURL))
		line("🎵", LabelAudio, check(draft.AudioURL))
	case *MissionDraft:
		b.WriteString("🌍 " + Text(lang, LabelMissionRegistration) + "\n\n")
		writeCommon(line, base)
		line("💼", LabelProfession, escaped(draft.Profession))
		line("🌍", LabelInterest, yesNo(lang, draft.MissionInterest))
		line("📸", LabelPhoto, check(base.PhotoURL))
	}

	return channel.Prompt{
		Text: b.String(),
		Buttons: [][]channel.Button{{
			{Label: Text(lang, MsgConfirm), Action: ActionSubmit},
			{Label: Text(lang, MsgCancel), Action: ActionCancel},
		}},
	}
}

func writeCommon(line func(string, MessageKey, string), c *Common) {
	line("👤", LabelName, escaped(c.Name))
	line("⛪", LabelChurch, escaped(c.Church))
	line("📱", LabelPhone, escaped(c.Phone))
	line("📍", LabelAddress, escaped(c.Address))
}

func escaped(s *string) string {
	if s == nil {
		return ""
	}
	return html.EscapeString(*s)
}

func yesNo(lang string, v *bool) string {
	if v != nil && *v {
		return Text(lang, MsgYes)
	}
	return Text(lang, MsgNo)
}

func check(s *string) string {
	if s != nil && *s != "" {
		return "✅"
	}
	return "❌"
}
