package registration

import "github.com/crossfellowship/registrar/internal/applicants"

// Step is a position in the conversation.
type Step string

const (
	StepLanguageSelection Step = "language_selection"
	StepTypeSelection     Step = "type_selection"
	StepName              Step = "name"
	StepChurch            Step = "church"
	StepPhone             Step = "phone"
	StepAddress           Step = "address"
	StepWorshipMinistry   Step = "worship_ministry"
	StepProfession        Step = "profession"
	StepMissionInterest   Step = "mission_interest"
	StepBio               Step = "bio"
	StepMotivation        Step = "motivation"
	StepPhoto             Step = "photo"
	StepAudio             Step = "audio"
	StepReview            Step = "review"
)

// IsPrelude reports whether the step precedes the applicant type branch.
func (s Step) IsPrelude() bool {
	return s == StepLanguageSelection || s == StepTypeSelection
}

// Flow is the ordered step sequence of one applicant type, after the prelude.
type Flow struct {
	Type  applicants.Type
	steps []Step
}

var (
	singerFlow = Flow{
		Type:  applicants.TypeSinger,
		steps: []Step{StepName, StepChurch, StepPhone, StepAddress, StepWorshipMinistry, StepPhoto, StepAudio, StepReview},
	}
	missionFlow = Flow{
		Type:  applicants.TypeMission,
		steps: []Step{StepName, StepChurch, StepPhone, StepAddress, StepProfession, StepMissionInterest, StepBio, StepMotivation, StepPhoto, StepReview},
	}
)

// FlowFor returns the flow for an applicant type.
func FlowFor(t applicants.Type) (Flow, bool) {
	switch t {
	case applicants.TypeSinger:
		return singerFlow, true
	case applicants.TypeMission:
		return missionFlow, true
	default:
		return Flow{}, false
	}
}

// First is the step entered right after type selection.
func (f Flow) First() Step {
	return f.steps[0]
}

func (f Flow) Contains(s Step) bool {
	return f.index(s) >= 0
}

// Next returns the step after s. ok is false for the last step or an unknown step.
func (f Flow) Next(s Step) (Step, bool) {
	i := f.index(s)
	if i < 0 || i+1 >= len(f.steps) {
		return "", false
	}
	return f.steps[i+1], true
}

// Steps returns a copy of the sequence.
func (f Flow) Steps() []Step {
	return append([]Step(nil), f.steps...)
}

func (f Flow) index(s Step) int {
	for i, step := range f.steps {
		if step == s {
			return i
		}
	}
	return -1
}
