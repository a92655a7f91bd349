package tui

import "testing"

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		name string
		args string
	}{
		{"quit", "quit", ""},
		{"  Search  hello world ", "search", "hello world"},
		{"accept 42", "accept", "42"},
		{"", "", ""},
	}
	for _, tt := range tests {
		got := ParseCommand(tt.in)
		if got.Name != tt.name || got.Args != tt.args {
			t.Errorf("ParseCommand(%q) = %+v, want {%s %s}", tt.in, got, tt.name, tt.args)
		}
	}
}

func TestParseComposer(t *testing.T) {
	tests := []struct {
		in      string
		command bool
		name    string
		args    string
		literal string
	}{
		{in: "hello", literal: "hello"},
		{in: "/retry", command: true, name: "retry"},
		{in: "/react 👍", command: true, name: "react", args: "👍"},
		{in: "/sticker https://cdn/x.webp", command: true, name: "sticker", args: "https://cdn/x.webp"},
		{in: "/reply 42 see above", command: true, name: "reply", args: "42 see above"},
		{in: "//not a command", literal: "/not a command"},
		{in: "/ spaced", literal: "/ spaced"},
		{in: "/", literal: "/"},
	}
	for _, tt := range tests {
		cmd, literal, ok := ParseComposer(tt.in)
		if ok != tt.command {
			t.Errorf("ParseComposer(%q) command = %v, want %v", tt.in, ok, tt.command)
			continue
		}
		if ok && (cmd.Name != tt.name || cmd.Args != tt.args) {
			t.Errorf("ParseComposer(%q) = %+v", tt.in, cmd)
		}
		if !ok && literal != tt.literal {
			t.Errorf("ParseComposer(%q) literal = %q, want %q", tt.in, literal, tt.literal)
		}
	}
}

func TestCommandFields(t *testing.T) {
	c := ParseCommand("react 17 🎉")
	f := c.Fields()
	if len(f) != 2 || f[0] != "17" || f[1] != "🎉" {
		t.Errorf("Fields = %v", f)
	}
}

func TestCommandReply(t *testing.T) {
	tests := []struct {
		args   string
		target string
		text   string
		ok     bool
	}{
		{"42 see above", "42", "see above", true},
		{"42   spaced  ", "42", "spaced", true},
		{"42", "42", "", false},
		{"", "", "", false},
	}
	for _, tt := range tests {
		target, text, ok := Command{Name: "reply", Args: tt.args}.Reply()
		if target != tt.target || text != tt.text || ok != tt.ok {
			t.Errorf("Reply(%q) = %q, %q, %v", tt.args, target, text, ok)
		}
	}
}
