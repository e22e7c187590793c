package operation

import (
	"fmt"
	"strings"
	"time"

	"github.com/lysyi3m/event-comb/app/database"
)

// BuildTexts reconstructs the flat info and error texts clients expect from
// an operation's structured log rows. Every row appears timestamped in the
// info text; error rows additionally appear, bare, in the error text.
func BuildTexts(logs []database.OperationLog) (infoText, errorText string) {
	var info, errs []string
	for _, l := range logs {
		line := l.Message
		if l.Level == database.LogLevelError {
			errs = append(errs, l.Message)
			line = "ERROR: " + line
		}
		info = append(info, fmt.Sprintf("[%s] %s", l.CreatedAt.UTC().Format(time.RFC3339), line))
	}
	return strings.Join(info, "\n"), strings.Join(errs, "\n")
}
