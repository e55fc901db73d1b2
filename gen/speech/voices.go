package speech

// MaxTextLength is the longest input the TTS endpoint accepts.
const MaxTextLength = 8000

// DefaultVoice is used when the request names none.
const DefaultVoice = "Kore"

// Voices lists the prebuilt voices the TTS endpoint offers.
var Voices = []string{
	"Kore",
	"Charon",
	"Fenrir",
	"Aoede",
	"Puck",
	"Leda",
	"Orus",
	"Zephyr",
}

// ValidVoice reports whether name is an offered voice.
func ValidVoice(name string) bool {
	for _, v := range Voices {
		if v == name {
			return true
		}
	}
	return false
}
