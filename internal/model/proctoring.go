package model

import (
	"time"
)

// SignalType enumerates the raw environment signals the UI shim forwards.
// Signals are facts about the host environment; whether they constitute a
// violation is decided by the proctoring monitor against the exam policy.
type SignalType string

const (
	SignalVisibilityHidden  SignalType = "visibility_hidden"
	SignalVisibilityVisible SignalType = "visibility_visible"
	SignalFullscreenExit    SignalType = "fullscreen_exit"
	SignalFullscreenEnter   SignalType = "fullscreen_enter"
	SignalCopy              SignalType = "copy"
	SignalCut               SignalType = "cut"
	SignalPaste             SignalType = "paste"
	SignalOffline           SignalType = "offline"
	SignalOnline            SignalType = "online"
	SignalEscapeKey         SignalType = "escape_key"
)

// EnvironmentSignal is one raw signal as reported by the UI.
type EnvironmentSignal struct {
	Type    SignalType        `json:"type"`
	Details map[string]string `json:"details,omitempty"`
	At      time.Time         `json:"at"`
}

// ProctoringEventType enumerates classified violation events reported to
// the authority.
type ProctoringEventType string

const (
	EventTabSwitch      ProctoringEventType = "tab_switch"
	EventFullscreenExit ProctoringEventType = "fullscreen_exit"
	EventCopyPaste      ProctoringEventType = "copy_paste"
	EventNetworkLoss    ProctoringEventType = "network_loss"
	EventHeartbeat      ProctoringEventType = "heartbeat"
)

// ProctoringEvent is a classified event bound for the authority's log.
type ProctoringEvent struct {
	Type      ProctoringEventType `json:"type"`
	Timestamp time.Time           `json:"timestamp"`
	Details   map[string]string   `json:"details,omitempty"`
}

// Advisory is a short-lived, user-visible notice. Advisories never change
// attempt state; they are display-only.
type Advisory struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
