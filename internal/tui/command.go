package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// Fields splits Args on whitespace.
func (c Command) Fields() []string {
	return strings.Fields(c.Args)
}

// Reply splits "/reply <id> <text>" arguments.
func (c Command) Reply() (target, text string, ok bool) {
	target, text, _ = strings.Cut(c.Args, " ")
	text = strings.TrimSpace(text)
	return target, text, target != "" && text != ""
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// ParseComposer reports whether composer text is a slash command such as
// "/retry" or "/react 👍". A doubled slash escapes a literal message.
func ParseComposer(text string) (cmd Command, literal string, isCommand bool) {
	trimmed := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(trimmed, "//"):
		return Command{}, trimmed[1:], false
	case strings.HasPrefix(trimmed, "/") && len(trimmed) > 1 && trimmed[1] != ' ':
		return ParseCommand(trimmed[1:]), "", true
	}
	return Command{}, text, false
}
