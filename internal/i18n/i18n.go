// Package i18n holds the localized UI strings and the set of supported
// languages.
package i18n

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// DefaultLanguage is used when no preference is known.
const DefaultLanguage = "en"

// ErrUnsupportedLanguage is returned for codes outside the supported set.
var ErrUnsupportedLanguage = errors.New("unsupported language")

// Key names a localized string.
type Key string

const (
	KeySubtitle        Key = "subtitle"
	KeyPlaceholder     Key = "placeholder"
	KeyRecording       Key = "recording"
	KeyStopRecording   Key = "stopRecording"
	KeyTooltipAudio    Key = "tooltipAudio"
	KeyTooltipKeyboard Key = "tooltipKeyboard"
	KeyTooltipSend     Key = "tooltipSend"
	KeyWelcome         Key = "welcomeMessage"
	KeyThinking        Key = "thinking"
	KeyFallback        Key = "transcriptionFallback"
	KeyMicDenied       Key = "micDenied"
	KeySendFailed      Key = "sendFailed"
	KeyNetworkError    Key = "networkError"
	KeyHistoryFailed   Key = "historyFailed"
	KeyDeleteFailed    Key = "deleteFailed"
	KeyLoginFailed     Key = "loginFailed"
	KeySignupFailed    Key = "signupFailed"
	KeyPasswordMatch   Key = "passwordMismatch"
	KeyRequiredFields  Key = "requiredFields"
	KeyInvalidEmail    Key = "invalidEmail"
	KeyUnsupported     Key = "unsupportedLanguage"
	KeyChatHistory     Key = "chatHistory"
	KeyNewChat         Key = "newChat"
	KeyLogout          Key = "logout"
	KeyChangeLanguage  Key = "changeLanguage"
	KeyConfirm         Key = "confirm"
)

type entry struct {
	tag     language.Tag
	locale  string
	strings map[Key]string
}

var english = map[Key]string{
	KeySubtitle:        "Your Personal Farming Assistant",
	KeyPlaceholder:     "Ask a question...",
	KeyRecording:       "Recording...",
	KeyStopRecording:   "Stop Recording",
	KeyTooltipAudio:    "Use Audio",
	KeyTooltipKeyboard: "On-screen Keyboard",
	KeyTooltipSend:     "Send",
	KeyWelcome:         "Hello! How can I help you with your farming needs today?",
	KeyThinking:        "Thinking...",
	KeyFallback:        "Sorry, I couldn't understand that. Please try again.",
	KeyMicDenied:       "Microphone access was denied. Please allow microphone access to use this feature.",
	KeySendFailed:      "Sorry, your message could not be sent. Please try again.",
	KeyNetworkError:    "Could not reach the server. Please check your connection.",
	KeyHistoryFailed:   "Could not load your chat history.",
	KeyDeleteFailed:    "Could not delete this chat.",
	KeyLoginFailed:     "Login failed.",
	KeySignupFailed:    "Signup failed.",
	KeyPasswordMatch:   "Passwords do not match.",
	KeyRequiredFields:  "Please fill in all fields.",
	KeyInvalidEmail:    "Please enter a valid email address.",
	KeyUnsupported:     "This language is not supported.",
	KeyChatHistory:     "Chat History",
	KeyNewChat:         "New Chat",
	KeyLogout:          "Logout",
	KeyChangeLanguage:  "Change Language",
	KeyConfirm:         "Confirm",
}

var hindi = map[Key]string{
	KeySubtitle:        "आपका व्यक्तिगत खेती सहायक",
	KeyPlaceholder:     "एक सवाल पूछो...",
	KeyRecording:       "रिकॉर्डिंग हो रही है...",
	KeyStopRecording:   "रिकॉर्डिंग रोकें",
	KeyTooltipAudio:    "ऑडियो का प्रयोग करें",
	KeyTooltipKeyboard: "ऑन-स्क्रीन कीबोर्ड",
	KeyTooltipSend:     "भेजें",
	KeyWelcome:         "नमस्ते! आज मैं आपकी खेती की ज़रूरतों में कैसे मदद कर सकता हूँ?",
	KeyThinking:        "सोच रहा हूँ...",
	KeyFallback:        "क्षमा करें, मैं समझ नहीं पाया। कृपया फिर से प्रयास करें।",
	KeyMicDenied:       "माइक्रोफ़ोन की अनुमति नहीं मिली। इस सुविधा के लिए कृपया माइक्रोफ़ोन की अनुमति दें।",
	KeySendFailed:      "क्षमा करें, आपका संदेश नहीं भेजा जा सका। कृपया फिर से प्रयास करें।",
	KeyNetworkError:    "सर्वर से संपर्क नहीं हो सका। कृपया अपना कनेक्शन जांचें।",
	KeyHistoryFailed:   "आपका चैट इतिहास लोड नहीं हो सका।",
	KeyDeleteFailed:    "यह चैट हटाई नहीं जा सकी।",
	KeyLoginFailed:     "लॉगिन विफल रहा।",
	KeySignupFailed:    "साइनअप विफल रहा।",
	KeyPasswordMatch:   "पासवर्ड मेल नहीं खाते।",
	KeyRequiredFields:  "कृपया सभी फ़ील्ड भरें।",
	KeyInvalidEmail:    "कृपया एक मान्य ईमेल पता दर्ज करें।",
	KeyUnsupported:     "यह भाषा समर्थित नहीं है।",
	KeyChatHistory:     "चैट इतिहास",
	KeyNewChat:         "नई चैट",
	KeyLogout:          "लॉग आउट",
	KeyChangeLanguage:  "भाषा बदलें",
	KeyConfirm:         "पुष्टि करें",
}

// order is the display order of the language pickers.
var order = []string{"en", "hi", "mr", "ta", "te", "bn", "gu", "kn", "pa", "ur", "ml", "or"}

var table = map[string]entry{
	"en": {tag: language.English, locale: "en-US", strings: english},
	"hi": {tag: language.Hindi, locale: "hi-IN", strings: hindi},
	"mr": {tag: language.Marathi, locale: "mr-IN"},
	"ta": {tag: language.Tamil, locale: "ta-IN"},
	"te": {tag: language.Telugu, locale: "te-IN"},
	"bn": {tag: language.Bengali, locale: "bn-IN"},
	"gu": {tag: language.Gujarati, locale: "gu-IN"},
	"kn": {tag: language.Kannada, locale: "kn-IN"},
	"pa": {tag: language.Punjabi, locale: "pa-IN"},
	"ur": {tag: language.Urdu, locale: "ur-IN"},
	"ml": {tag: language.Malayalam, locale: "ml-IN"},
	"or": {tag: language.Make("or"), locale: "or-IN"},
}

var matcher = language.NewMatcher(supportedTags())

func supportedTags() []language.Tag {
	tags := make([]language.Tag, 0, len(order))
	for _, code := range order {
		tags = append(tags, table[code].tag)
	}
	return tags
}

// Language describes one selectable language.
type Language struct {
	Code       string `json:"code"`
	Locale     string `json:"locale"`
	NativeName string `json:"nativeName"`
	Name       string `json:"name"`
}

// Languages lists the supported languages in picker order.
func Languages() []Language {
	out := make([]Language, 0, len(order))
	for _, code := range order {
		e := table[code]
		out = append(out, Language{
			Code:       code,
			Locale:     e.locale,
			NativeName: display.Self.Name(e.tag),
			Name:       display.English.Languages().Name(e.tag),
		})
	}
	return out
}

// Normalize maps a user supplied code such as "hi", "HI" or "hi-IN" onto a
// supported language code.
func Normalize(code string) (string, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty code", ErrUnsupportedLanguage)
	}
	if _, ok := table[strings.ToLower(trimmed)]; ok {
		return strings.ToLower(trimmed), nil
	}

	tag, err := language.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	_, index, confidence := matcher.Match(tag)
	if confidence < language.High {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	return order[index], nil
}

// Supported reports whether code is one of the supported language codes.
func Supported(code string) bool {
	_, ok := table[code]
	return ok
}

// LocaleCode returns the speech locale for a language, e.g. "hi-IN".
func LocaleCode(code string) string {
	if e, ok := table[code]; ok {
		return e.locale
	}
	return table[DefaultLanguage].locale
}

// T returns the localized string for key, falling back to English.
func T(code string, key Key) string {
	if e, ok := table[code]; ok {
		if value, ok := e.strings[key]; ok && value != "" {
			return value
		}
	}
	return english[key]
}

// Strings returns the full string table for a language with English filling
// the gaps.
func Strings(code string) map[Key]string {
	out := make(map[Key]string, len(english))
	for key := range english {
		out[key] = T(code, key)
	}
	return out
}
