package session

import (
	"fmt"
	"strings"
)

const summaryPrefix = "Summary of chat so far: "

func teamMessage(ws Workspace, summary, request string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Working in workspace: %s\n", ws.describe(ws.Path))
	fmt.Fprintf(&b, "Active Document: %s\n\n", ws.describe(ws.ActiveDocument))
	b.WriteString("If the workspace is not set, don't attempt to write any file unless asked for.\n")
	b.WriteString("You are part of a collaborative team of agents, so pass requests to them if needed and if they are better suited for a task.\n")
	b.WriteString("Try to keep the discussion as short as possible and finish as early as you can to avoid many rounds of discussion.\n\n")
	if summary != "" {
		b.WriteString(summaryPrefix)
		b.WriteString(summary)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "User Request: %s", request)
	return b.String()
}

func singleMessage(ws Workspace, request string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Working in workspace: %s\n", ws.describe(ws.Path))
	fmt.Fprintf(&b, "Active Document: %s\n\n", ws.describe(ws.ActiveDocument))
	b.WriteString("If the workspace is not set, don't attempt to write any file unless explicitly asked for.\n")
	b.WriteString("You are working alone without a team of agents.\n\n")
	fmt.Fprintf(&b, "User Request: %s", request)
	return b.String()
}
