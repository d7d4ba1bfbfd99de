package session

// Workspace is the per-session editor context. Each run works on the copy
// taken when it starts.
type Workspace struct {
	Path           string `json:"workspacePath"`
	ActiveDocument string `json:"activeDocumentPath"`
}

func (w Workspace) describe(value string) string {
	if value == "" {
		return "(not set)"
	}
	return value
}
