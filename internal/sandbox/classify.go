package sandbox

import (
	"fmt"
	"regexp"
)

// Category identifies why a command was classified as dangerous.
type Category string

const (
	CategoryDestructiveFS       Category = "destructive_filesystem"
	CategoryForkBomb            Category = "fork_bomb"
	CategoryPrivilegeEscalation Category = "privilege_escalation"
	CategorySystemPathAccess    Category = "system_path_access"
)

// ViolationError reports a command rejected before any sandbox was created.
type ViolationError struct {
	Category Category
	Pattern  string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("sandbox violation (%s): command matches %q", e.Category, e.Pattern)
}

type dangerousPattern struct {
	category Category
	re       *regexp.Regexp
}

// dangerousPatterns are checked in order; the first match wins.
var dangerousPatterns = []dangerousPattern{
	// Recursive delete of the filesystem root.
	{CategoryDestructiveFS, regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*-[a-zA-Z]*[rf][a-zA-Z]*\s+/\s*(\*\s*)?($|[;&|])`)},
	// Raw device writes.
	{CategoryDestructiveFS, regexp.MustCompile(`\bdd\b[^;|&]*\bof=/dev/|[>]{1,2}\s*/dev/(sd|hd|disk|nvme)`)},
	// Filesystem format commands.
	{CategoryDestructiveFS, regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b|\bdiskutil\s+eraseDisk\b`)},
	// Classic shell fork bomb.
	{CategoryForkBomb, regexp.MustCompile(`:\(\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;?\s*:`)},
	// Self-forking loops.
	{CategoryForkBomb, regexp.MustCompile(`\bwhile\s+(true|:)\s*;\s*do\b[^;]*\bfork\b`)},
	// Privilege escalation.
	{CategoryPrivilegeEscalation, regexp.MustCompile(`(^|[;&|]\s*|\s)sudo\s`)},
	{CategoryPrivilegeEscalation, regexp.MustCompile(`(^|[;&|]\s*)su(\s|$)`)},
	// Mutating access to system-critical paths.
	{CategorySystemPathAccess, regexp.MustCompile(`\b(rm|mv|cp|touch|chmod|chown|tee)\b[^;|&]*\s/(System|Library/System|private/var)(/|\s|$)`)},
	{CategorySystemPathAccess, regexp.MustCompile(`[>]{1,2}\s*/(System|Library/System|private/var)(/|$)`)},
}

// Classify checks a script against the dangerous-command patterns. It is a
// pure function of the command text: it returns the matching *ViolationError,
// or nil when the script is safe to sandbox.
func Classify(script string) *ViolationError {
	for _, p := range dangerousPatterns {
		if p.re.MatchString(script) {
			return &ViolationError{Category: p.category, Pattern: p.re.String()}
		}
	}
	return nil
}
