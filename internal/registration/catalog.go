package registration

import (
	"golang.org/x/text/language"
)

// MessageKey names a localized message.
type MessageKey string

const (
	MsgWelcome           MessageKey = "welcome"
	MsgMainMenu          MessageKey = "main_menu"
	MsgTypeSinger        MessageKey = "type_singer"
	MsgTypeMission       MessageKey = "type_mission"
	MsgAskName           MessageKey = "ask_name"
	MsgAskChurch         MessageKey = "ask_church"
	MsgAskPhone          MessageKey = "ask_phone"
	MsgAskAddress        MessageKey = "ask_address"
	MsgAskWorship        MessageKey = "ask_worship"
	MsgAskPhoto          MessageKey = "ask_photo"
	MsgAskAudio          MessageKey = "ask_audio"
	MsgAskProfession     MessageKey = "ask_profession"
	MsgAskInterest       MessageKey = "ask_interest"
	MsgAskBio            MessageKey = "ask_bio"
	MsgAskMotivation     MessageKey = "ask_motivation"
	MsgYes               MessageKey = "yes"
	MsgNo                MessageKey = "no"
	MsgConfirm           MessageKey = "confirm"
	MsgCancel            MessageKey = "cancel"
	MsgShareContact      MessageKey = "share_contact"
	MsgInvalidPhone      MessageKey = "invalid_phone"
	MsgInvalidAudio      MessageKey = "invalid_audio"
	MsgInvalidPhoto      MessageKey = "invalid_photo"
	MsgReviewTitle       MessageKey = "review_title"
	MsgSubmissionSuccess MessageKey = "submission_success"
	MsgSubmissionError   MessageKey = "submission_error"
	MsgAlreadyRegistered MessageKey = "already_registered"
	MsgCancelled         MessageKey = "cancelled"

	LabelSingerRegistration  MessageKey = "label_singer_registration"
	LabelMissionRegistration MessageKey = "label_mission_registration"
	LabelName                MessageKey = "label_name"
	LabelChurch              MessageKey = "label_church"
	LabelPhone               MessageKey = "label_phone"
	LabelAddress             MessageKey = "label_address"
	LabelWorship             MessageKey = "label_worship"
	LabelProfession          MessageKey = "label_profession"
	LabelInterest            MessageKey = "label_interest"
	LabelPhoto               MessageKey = "label_photo"
	LabelAudio               MessageKey = "label_audio"
)

const (
	LangEnglish = "en"
	LangAmharic = "am"
)

// Subcities are the accepted address choices.
var Subcities = []string{
	"Addis Ketema", "Akaki Kaliti", "Arada", "Bole", "Gulele",
	"Kirkos", "Kolfe Keranio", "Lideta", "Nifas Silk-Lafto",
	"Yeka", "Lemi Kura",
}

var languageMatcher = language.NewMatcher([]language.Tag{language.English, language.Amharic})

// ResolveLanguage maps a locale code to a supported language, ok is false
// when the code does not match any of them.
func ResolveLanguage(code string) (string, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return LangEnglish, false
	}
	_, index, confidence := languageMatcher.Match(tag)
	if confidence == language.No {
		return LangEnglish, false
	}
	if index == 1 {
		return LangAmharic, true
	}
	return LangEnglish, true
}

// Text returns the message in lang, falling back to English.
func Text(lang string, key MessageKey) string {
	if msgs, ok := catalog[lang]; ok {
		if s, ok := msgs[key]; ok {
			return s
		}
	}
	return catalog[LangEnglish][key]
}

func isSubcity(s string) bool {
	for _, c := range Subcities {
		if c == s {
			return true
		}
	}
	return false
}

var catalog = map[string]map[MessageKey]string{
	LangEnglish: {
		MsgWelcome:           "Welcome to The Cross Fellowship Registration! 🎉\n\nPlease select your preferred language:",
		MsgMainMenu:          "What would you like to register for?",
		MsgTypeSinger:        "🎤 Singer Registration",
		MsgTypeMission:       "🌍 Mission Registration",
		MsgAskName:           "📝 Please enter your full name:",
		MsgAskChurch:         "⛪ Which local church do you attend?",
		MsgAskPhone:          "📱 Please share your phone number. You can use the \"Share Contact\" button below or type your number with country code (+251...)",
		MsgAskAddress:        "📍 Please select your subcity in Addis Ababa:",
		MsgAskWorship:        "🙏 Are you currently involved in worship ministry?",
		MsgAskPhoto:          "📸 Please send your photo (optional). You can skip this step by typing \"skip\".",
		MsgAskAudio:          "🎵 Please send a sample audio of you singing (max 1 minute, max 5MB).",
		MsgAskProfession:     "💼 What is your profession?",
		MsgAskInterest:       "🌍 Are you interested to be involved in mission work and charity?",
		MsgAskBio:            "📖 Please tell us about yourself (bio):",
		MsgAskMotivation:     "❓ Why do you want to join The Cross Fellowship?",
		MsgYes:               "✅ Yes",
		MsgNo:                "❌ No",
		MsgConfirm:           "✅ Confirm",
		MsgCancel:            "❌ Cancel",
		MsgShareContact:      "📱 Share Contact",
		MsgInvalidPhone:      "❌ Invalid phone number. Please use the format: +251XXXXXXXXX",
		MsgInvalidAudio:      "❌ Invalid audio file. Please ensure:\n• File is less than 5MB\n• Duration is less than 1 minute\n• File is in MP3, WAV, or OGG format",
		MsgInvalidPhoto:      "❌ Invalid photo. Please send a valid image file (JPG, PNG).",
		MsgReviewTitle:       "📋 Please review your information:",
		MsgSubmissionSuccess: "✅ Thank you! Your application has been submitted successfully.\n\nWe will review your application and contact you soon.",
		MsgSubmissionError:   "❌ Sorry, there was an error submitting your application. Please try again later.",
		MsgAlreadyRegistered: "⚠️ You have already submitted an application. Please wait for our review.",
		MsgCancelled:         "Registration cancelled.",

		LabelSingerRegistration:  "Singer Registration",
		LabelMissionRegistration: "Mission Registration",
		LabelName:                "Name",
		LabelChurch:              "Church",
		LabelPhone:               "Phone",
		LabelAddress:             "Address",
		LabelWorship:             "Worship Ministry",
		LabelProfession:          "Profession",
		LabelInterest:            "Mission Interest",
		LabelPhoto:               "Photo",
		LabelAudio:               "Audio",
	},
	LangAmharic: {
		MsgWelcome:           "ወደ The Cross Fellowship ምዝገባ እንኳን ደህና መጡ! 🎉\n\nእባኮትን ቋንቋዎን ይምረጡ:",
		MsgMainMenu:          "ለምን መመዝገብ ይፈልጋሉ?",
		MsgTypeSinger:        "🎤 ዘማሪ ምዝገባ",
		MsgTypeMission:       "🌍 የሚሲዮን ምዝገባ",
		MsgAskName:           "📝 ሙሉ ስምዎን ያስገቡ:",
		MsgAskChurch:         "⛪ የትኛውን አብያተ ክርስቲያን ትጎበኛላችሁ?",
		MsgAskPhone:          "📱 እባኮትን ስልክ ቁጥርዎን ያጋሩ። ከታች ያለውን \"ስልክ አጋራ\" ቁልፍ መጫን ይችላሉ ወይም ከዓለም አቀፍ ኮድ ጋር መሙላት ይችላሉ (+251...)",
		MsgAskAddress:        "📍 በአዲስ አበባ ያሉበትን ክፍለ ከተማ ይምረጡ:",
		MsgAskWorship:        "🙏 በአሁኑ ጊዜ በመዝሙር አገልግሎት ተሳትፈዋል?",
		MsgAskPhoto:          "📸 ፎቶዎን ይላኩ (አማራጭ)። \"skip\" በማለት ይህን ደረጃ መዝለል ይችላሉ።",
		MsgAskAudio:          "🎵 እባኮትን ከ1 ደቂቃ እና ከ5 ሜጋባይት በማይበልጥ ዘማሪነቶን የሚያሳይ የድምፅ ናሙና ይላኩ።",
		MsgAskProfession:     "💼 ሙያዎ ምንድን ነው?",
		MsgAskInterest:       "🌍 በሚሲዮን እና በቻሪቲ አገልግሎት መሳተፍ ይፈልጋሉ?",
		MsgAskBio:            "📖 እባኮትን ስለ ራስዎ ይንገሩን (ባዮ):",
		MsgAskMotivation:     "❓ ለምን The Cross Fellowship መቀላቀል ይፈልጋሉ?",
		MsgYes:               "✅ አዎ",
		MsgNo:                "❌ አይ",
		MsgConfirm:           "✅ አረጋግጥ",
		MsgCancel:            "❌ ሰርዝ",
		MsgShareContact:      "📱 ስልክ አጋራ",
		MsgInvalidPhone:      "❌ የተሳሳተ ስልክ ቁጥር። እባኮትን ይህን ቅርጽ ይጠቀሙ፡ +251XXXXXXXXX",
		MsgInvalidAudio:      "❌ የተሳሳተ የድምፅ ፋይል። እባኮትን እነዚህን ያረጋግጡ፡\n• ፋይሉ ከ5 ሜጋባይት ያነሰ\n• ቆይታው ከ1 ደቂቃ ያነሰ\n• ፋይሉ MP3፣ WAV ወይም OGG መሆን አለበት",
		MsgInvalidPhoto:      "❌ የተሳሳተ ፎቶ። እባኮትን ትክክለኛ የምስል ፋይል ይላኩ (JPG፣ PNG)።",
		MsgReviewTitle:       "📋 እባኮትን መረጃዎን ይመልከቱ፡",
		MsgSubmissionSuccess: "✅ አመሰግናለሁ! ምዝገባዎ በተሳካ ሁኔታ ተልኳል።\n\nምዝገባውን እንመረምረዋለን እና በቅርቡ እንተዋወቃለን።",
		MsgSubmissionError:   "❌ ይቅርታ፣ ምዝገባውን በመላክ ላይ ስህተት ተከስቷል። እባኮትን በኋላ ይሞክሩ።",
		MsgAlreadyRegistered: "⚠️ ከዚህ ቀን በፊት ምዝገባ አጠናቅቀዋል። እባኮትን ግምገማችንን ይጠብቁን።",
		MsgCancelled:         "ምዝገባ ተሰርዟል።",

		LabelSingerRegistration:  "ዘማሪ ምዝገባ",
		LabelMissionRegistration: "የሚሲዮን ምዝገባ",
		LabelName:                "ስም",
		LabelChurch:              "አብያተ ክርስቲያን",
		LabelPhone:               "ስልክ",
		LabelAddress:             "አድራሻ",
		LabelWorship:             "መዝሙር አገልግሎት",
		LabelProfession:          "ሙያ",
		LabelInterest:            "የሚሲዮን ፍላጎት",
		LabelPhoto:               "ፎቶ",
		LabelAudio:               "ድምፅ",
	},
}
