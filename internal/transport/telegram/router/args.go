package router

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// newReqID is a 12-char id for correlating a request's log lines.
func newReqID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// tokenizeCommandLine splits a command message into words. Single or double
// quotes group words and a backslash escapes the next character:
//
//	/task add "nightly backup" --cron '0 3 * * *'
//
// An empty quoted string yields an empty word.
func tokenizeCommandLine(s string) []string {
	var (
		words   []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range s {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped, inWord = true, true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote, inWord = r, true
		case unicode.IsSpace(r):
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if inWord {
		words = append(words, cur.String())
	}
	return words
}

// parseFlags separates positionals from flags:
//
//	--key=value  --key value  --flag
//	-k=value     -k value     -k      -abc (a, b and c set)
//
// A flag takes the next word as its value unless that word starts with
// "-". Everything after a bare "--" is positional.
func parseFlags(args []string) (pos []string, flags map[string]string, bools map[string]bool) {
	flags, bools = map[string]string{}, map[string]bool{}
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			pos = append(pos, args[i+1:]...)
			break
		}
		key, long := strings.CutPrefix(a, "--")
		if !long {
			var short bool
			if key, short = strings.CutPrefix(a, "-"); !short || key == "" {
				pos = append(pos, a)
				continue
			}
		}
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[k] = v
			continue
		}
		if !long && len(key) > 1 {
			for _, c := range key {
				bools[string(c)] = true
			}
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			flags[key] = args[i+1]
			i++
			continue
		}
		bools[key] = true
	}
	return pos, flags, bools
}
