package proxy

import (
	"strings"
)

const (
	rememberPrefix = "remember:"
	forgetPrefix   = "forget:"
	answerSep      = "=>"
)

type commandKind int

const (
	commandRemember commandKind = iota + 1
	commandForget
)

// command is a memory instruction typed into a chat, e.g.
//
//	remember: who is Zorg? => Zorg is the moon base cat
//	forget: who is Zorg?
type command struct {
	kind     commandKind
	question string
	answer   string
}

// parseCommand recognizes a memory command in the user's text. Prefixes are
// matched case-insensitively. A remember command without "=>" is returned with
// an empty answer so the store rejects it.
func parseCommand(text string) (command, bool) {
	text = strings.TrimSpace(text)

	switch {
	case hasPrefixFold(text, rememberPrefix):
		rest := text[len(rememberPrefix):]
		question, answer, _ := strings.Cut(rest, answerSep)
		return command{
			kind:     commandRemember,
			question: strings.TrimSpace(question),
			answer:   strings.TrimSpace(answer),
		}, true

	case hasPrefixFold(text, forgetPrefix):
		return command{
			kind:     commandForget,
			question: strings.TrimSpace(text[len(forgetPrefix):]),
		}, true
	}

	return command{}, false
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
