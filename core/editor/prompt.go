package editor

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

var (
	okStatus   = color.New(color.FgGreen, color.Bold)
	failStatus = color.New(color.FgRed, color.Bold)
)

// Prompt renders "<status>|<cwd>" followed by "$ " on the next line, with the
// home directory shortened to ~.
func Prompt(status int, cwd, home string, colored bool) string {
	if home != "" && (cwd == home || strings.HasPrefix(cwd, home+"/")) {
		cwd = "~" + strings.TrimPrefix(cwd, home)
	}

	code := fmt.Sprint(status)
	if colored {
		c := okStatus
		if status != 0 {
			c = failStatus
		}
		c.EnableColor()
		code = c.Sprint(code)
	}

	return fmt.Sprintf("%s|%s\n$ ", code, cwd)
}
