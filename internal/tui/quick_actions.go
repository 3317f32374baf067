package tui

// QuickAction is a canned prompt offered on the empty chat screen.
type QuickAction struct {
	Title  string
	Prompt string
}

// QuickActions are offered when the active chat has no messages.
var QuickActions = []QuickAction{
	{Title: "Optimize my code", Prompt: "Can you help me optimize this code snippet for better performance and readability?"},
	{Title: "Explain a concept", Prompt: "Explain quantum entanglement to me as if I'm a five-year-old."},
	{Title: "Write an email", Prompt: "Draft a polite but firm follow-up email to a recruiter regarding a job application."},
	{Title: "Brainstorm ideas", Prompt: "Brainstorm 5 unique startup ideas involving sustainable energy and AI."},
}
