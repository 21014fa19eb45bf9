package llm

import (
	"fmt"
	"strings"
)

// FirstChoice safely returns the first choice from a ChatResponse.
// Returns an error if the response is nil or has no choices.
func FirstChoice(resp *ChatResponse) (ChatChoice, error) {
	if resp == nil {
		return ChatChoice{}, fmt.Errorf("nil ChatResponse")
	}
	if len(resp.Choices) == 0 {
		return ChatChoice{}, fmt.Errorf("empty choices in ChatResponse (model returned no choices)")
	}
	return resp.Choices[0], nil
}

// FirstContent returns the trimmed text of the first choice.
// A response whose first choice carries only whitespace is reported as ErrEmptyResponse.
func FirstContent(resp *ChatResponse) (string, error) {
	choice, err := FirstChoice(resp)
	if err != nil {
		return "", &Error{Code: ErrEmptyResponse, Message: err.Error()}
	}
	text := strings.TrimSpace(choice.Message.Content)
	if text == "" {
		provider := ""
		if resp != nil {
			provider = resp.Provider
		}
		return "", &Error{Code: ErrEmptyResponse, Message: "model returned empty content", Provider: provider}
	}
	return text, nil
}
