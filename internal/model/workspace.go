package model

// WorkspaceState is the in-progress draft for one question: answer text or
// selected options, custom run input, and editor toggles. It lives only in
// the controller's workspace cache and is never sent to the authority.
type WorkspaceState struct {
	Answer           string            `json:"answer"`
	SelectedOptions  []string          `json:"selected_options,omitempty"`
	CustomInput      string            `json:"custom_input"`
	ExpectedOutput   string            `json:"expected_output"`
	SelectedLanguage string            `json:"selected_language,omitempty"`
	ShowHints        bool              `json:"show_hints"`
	ShowSolution     bool              `json:"show_solution"`
	// LanguageDrafts remembers the last typed answer per language so that
	// switching back to a language restores the student's code instead of
	// the starter snippet.
	LanguageDrafts map[string]string `json:"language_drafts,omitempty"`
}

// Payload converts the draft into the answer shape run/submit operations use.
func (w *WorkspaceState) Payload(questionType QuestionType) AnswerPayload {
	if questionType.IsChoice() {
		return AnswerPayload{SelectedOptions: append([]string(nil), w.SelectedOptions...)}
	}
	p := AnswerPayload{Text: w.Answer}
	if questionType.IsCoding() {
		p.Language = w.SelectedLanguage
	}
	return p
}
