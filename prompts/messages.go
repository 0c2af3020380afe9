package prompts

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/reusee/distill/gateways"
)

// Initial returns the system turn and the first user turn.
// contextTokens is omitted when not positive.
func Initial(params Params, query string, contextLength int, contextTokens int) []gateways.Message {
	size := fmt.Sprintf("Context length: %s characters", humanize.Comma(int64(contextLength)))
	if contextTokens > 0 {
		size += fmt.Sprintf(" (~%s tokens)", humanize.Comma(int64(contextTokens)))
	}
	return []gateways.Message{
		{
			Role:    gateways.RoleSystem,
			Content: System(params),
		},
		{
			Role:    gateways.RoleUser,
			Content: size + ".\n\nQuestion: " + query,
		},
	}
}

// NoCode is the feedback for a turn without any code block.
const NoCode = "No ```repl``` block was found in your response, so nothing was executed. Write code in ```repl``` blocks, and call FINAL(answer) from code when you are done."

// Truncated notes that only the first shown of total characters were displayed.
func Truncated(shown, total int) string {
	return fmt.Sprintf("[Output truncated: showing the first %d of %d characters. The full output was logged. Store large results in variables instead of printing them.]", shown, total)
}
