package service

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/codeassess/sessiond/internal/model"
)

// SignalOutcome is what one raw environment signal amounts to under the
// exam's policy: at most one reportable event, at most one advisory, and
// two flags for the UI shim.
type SignalOutcome struct {
	Event    *model.ProctoringEvent
	Advisory *model.Advisory

	// PreventDefault tells the shim to suppress the browser's default
	// handling of the originating DOM event.
	PreventDefault bool

	// Resync asks the controller to reconcile against the authority,
	// raised when connectivity returns after an offline spell.
	Resync bool
}

// ProctorService turns raw environment signals into classified events per
// the exam's proctoring policy. Signals that the policy does not care
// about produce nothing; classification never blocks on the network.
// Not safe for concurrent use; the session controller serializes calls.
type ProctorService struct {
	policy model.ProctoringPolicy
	log    zerolog.Logger

	tabSwitches int
}

// NewProctorService creates a classifier for one exam's policy.
func NewProctorService(policy model.ProctoringPolicy, log zerolog.Logger) *ProctorService {
	return &ProctorService{
		policy: policy,
		log:    log.With().Str("component", "proctor").Logger(),
	}
}

// TabSwitchCount returns how many tab switches have been recorded.
func (p *ProctorService) TabSwitchCount() int {
	return p.tabSwitches
}

// Classify applies the policy to one signal.
func (p *ProctorService) Classify(sig model.EnvironmentSignal) SignalOutcome {
	at := sig.At
	if at.IsZero() {
		at = time.Now()
	}

	switch sig.Type {
	case model.SignalVisibilityHidden:
		p.tabSwitches++
		out := SignalOutcome{
			Event: &model.ProctoringEvent{
				Type:      model.EventTabSwitch,
				Timestamp: at,
				Details:   map[string]string{"count": strconv.Itoa(p.tabSwitches)},
			},
		}
		msg := "Tab switch recorded."
		if p.policy.TabSwitchLimit > 0 {
			if left := p.policy.TabSwitchLimit - p.tabSwitches; left > 0 {
				msg = fmt.Sprintf("Tab switch recorded. %d more will end your exam.", left)
			} else {
				msg = "Tab switching is monitored. Further switches may end your exam."
			}
		}
		out.Advisory = &model.Advisory{Code: "tab_switch_warning", Message: msg, At: at}
		return out

	case model.SignalFullscreenExit:
		if !p.policy.FullscreenRequired {
			return SignalOutcome{}
		}
		return SignalOutcome{
			Event: &model.ProctoringEvent{Type: model.EventFullscreenExit, Timestamp: at, Details: sig.Details},
			Advisory: &model.Advisory{
				Code:    "fullscreen_required",
				Message: "Return to fullscreen to continue the exam.",
				At:      at,
			},
		}

	case model.SignalCopy, model.SignalCut, model.SignalPaste:
		if !p.policy.DisableCopyPaste {
			return SignalOutcome{}
		}
		return SignalOutcome{
			Event: &model.ProctoringEvent{
				Type:      model.EventCopyPaste,
				Timestamp: at,
				Details:   map[string]string{"action": string(sig.Type)},
			},
			Advisory: &model.Advisory{
				Code:    "copy_paste_blocked",
				Message: "Copy and paste are disabled during this exam.",
				At:      at,
			},
			PreventDefault: true,
		}

	case model.SignalOffline:
		return SignalOutcome{
			Event: &model.ProctoringEvent{Type: model.EventNetworkLoss, Timestamp: at, Details: sig.Details},
			Advisory: &model.Advisory{
				Code:    "offline",
				Message: "Connection lost. Your work is saved locally and will sync when you are back online.",
				At:      at,
			},
		}

	case model.SignalOnline:
		// Not a violation. Reconcile against the server, which may have
		// moved on while we were away.
		return SignalOutcome{
			Resync: true,
			Advisory: &model.Advisory{
				Code:    "online",
				Message: "Connection restored. Syncing your progress.",
				At:      at,
			},
		}

	case model.SignalEscapeKey:
		if !p.policy.FullscreenRequired {
			return SignalOutcome{}
		}
		return SignalOutcome{
			PreventDefault: true,
			Advisory: &model.Advisory{
				Code:    "fullscreen_required",
				Message: "Stay in fullscreen during the exam.",
				At:      at,
			},
		}

	case model.SignalVisibilityVisible, model.SignalFullscreenEnter:
		return SignalOutcome{}
	}

	p.log.Debug().Str("signal", string(sig.Type)).Msg("Unrecognized signal ignored")
	return SignalOutcome{}
}
