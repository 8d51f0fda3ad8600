package app

import "strings"

// Mode selects which backend profile a conversation runs against.
type Mode string

const (
	ModeRegular    Mode = "regular"
	ModeUncensored Mode = "uncensored"
	ModeOCR        Mode = "ocr"
)

var Modes = []Mode{ModeRegular, ModeUncensored, ModeOCR}

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRegular:
		return ModeRegular, true
	case ModeUncensored:
		return ModeUncensored, true
	case ModeOCR:
		return ModeOCR, true
	}
	return ModeRegular, false
}

func (m Mode) Label() string {
	switch m {
	case ModeUncensored:
		return "🔥 Uncensored"
	case ModeOCR:
		return "📄 OCR + Ask"
	default:
		return "🤖 Regular"
	}
}

// Next cycles through the known modes in a fixed order.
func (m Mode) Next() Mode {
	for i, cur := range Modes {
		if cur == m {
			return Modes[(i+1)%len(Modes)]
		}
	}
	return ModeRegular
}
