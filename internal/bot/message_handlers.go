package bot

import "strings"

// ParseCommand splits "/name@bot arg1 arg2" into a lower-cased command name
// and its arguments. ok is false for text that is not a command.
func ParseCommand(text string) (name string, args []string, ok bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return "", nil, false
	}

	name = strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return "", nil, false
	}

	return strings.ToLower(name), fields[1:], true
}
