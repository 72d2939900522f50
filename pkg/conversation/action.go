package conversation

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownAction is returned for callback payloads that match no action
var ErrUnknownAction = errors.New("unknown action")

// Callback payload prefixes
const (
	prefixDocx         = "docx"
	prefixPDF          = "pdf"
	prefixFullManual   = "full_manual"
	prefixAutotestMenu = "autotest_menu"
	prefixGenAutotest  = "gen_auto"
	prefixBackManual   = "back_manual"
	payloadNewFeature  = "new_feature"
)

// Action is a button press parsed from a callback payload
type Action interface {
	action()
}

// ExportDocx requests the manual tests as a Word document
type ExportDocx struct{ SessionID string }

// ExportPDF requests the manual tests as a PDF
type ExportPDF struct{ SessionID string }

// ShowFullManual requests the complete manual test text
type ShowFullManual struct{ SessionID string }

// AutotestMenu requests the language menu
type AutotestMenu struct{ SessionID string }

// GenerateAutotest requests autotest code in Language
type GenerateAutotest struct {
	Language  string
	SessionID string
}

// BackToManual returns to the manual test preview
type BackToManual struct{ SessionID string }

// NewFeature resets the conversation
type NewFeature struct{}

func (ExportDocx) action()       {}
func (ExportPDF) action()        {}
func (ShowFullManual) action()   {}
func (AutotestMenu) action()     {}
func (GenerateAutotest) action() {}
func (BackToManual) action()     {}
func (NewFeature) action()       {}

// ParseAction parses a callback payload of the form action:sessionId,
// action:param:sessionId or a bare action
func ParseAction(data string) (Action, error) {
	if data == payloadNewFeature {
		return NewFeature{}, nil
	}

	prefix, rest, ok := strings.Cut(data, ":")
	if !ok || rest == "" {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}

	if prefix == prefixGenAutotest {
		language, id, ok := strings.Cut(rest, ":")
		if !ok || language == "" || id == "" {
			return nil, fmt.Errorf("%w: %q", ErrUnknownAction, data)
		}
		return GenerateAutotest{Language: language, SessionID: id}, nil
	}

	switch prefix {
	case prefixDocx:
		return ExportDocx{SessionID: rest}, nil
	case prefixPDF:
		return ExportPDF{SessionID: rest}, nil
	case prefixFullManual:
		return ShowFullManual{SessionID: rest}, nil
	case prefixAutotestMenu:
		return AutotestMenu{SessionID: rest}, nil
	case prefixBackManual:
		return BackToManual{SessionID: rest}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, data)
	}
}

// EncodeAction renders a as a callback payload accepted by ParseAction
func EncodeAction(a Action) string {
	switch a := a.(type) {
	case ExportDocx:
		return prefixDocx + ":" + a.SessionID
	case ExportPDF:
		return prefixPDF + ":" + a.SessionID
	case ShowFullManual:
		return prefixFullManual + ":" + a.SessionID
	case AutotestMenu:
		return prefixAutotestMenu + ":" + a.SessionID
	case GenerateAutotest:
		return prefixGenAutotest + ":" + a.Language + ":" + a.SessionID
	case BackToManual:
		return prefixBackManual + ":" + a.SessionID
	case NewFeature:
		return payloadNewFeature
	default:
		panic(fmt.Sprintf("conversation: unhandled action %T", a))
	}
}

// SessionOf returns the session id an action refers to
func SessionOf(a Action) (string, bool) {
	switch a := a.(type) {
	case ExportDocx:
		return a.SessionID, true
	case ExportPDF:
		return a.SessionID, true
	case ShowFullManual:
		return a.SessionID, true
	case AutotestMenu:
		return a.SessionID, true
	case GenerateAutotest:
		return a.SessionID, true
	case BackToManual:
		return a.SessionID, true
	default:
		return "", false
	}
}
