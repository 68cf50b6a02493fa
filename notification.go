package backupflow

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/randalmurphal/backupflow/dump"
	bferrors "github.com/randalmurphal/backupflow/errors"
	"github.com/randalmurphal/backupflow/notify"
)

// failureEvent builds the notification for a failed run.
func failureEvent(job dump.Job, result *RunResult, now time.Time) notify.Event {
	stage := result.FailedStage()

	meta := map[string]any{"run_id": result.RunID}
	if stage != "" {
		meta["stage"] = stage
	}

	return notify.Event{
		Type:      notify.EventRunFailed,
		RunID:     result.RunID,
		Host:      result.Host,
		Job:       job.Title(),
		Stage:     stage,
		Message:   FailureMessage(job.Title(), result.Host, result.Err),
		Severity:  notify.SeverityError,
		Timestamp: now,
		Metadata:  meta,
	}
}

// FailureMessage renders the notification text for err.
//
// Empty artifacts read "<title> failed: <what> is empty or missing on <host>";
// every other failure reads "<title> error: <Stage> failed on <host>: <detail>".
func FailureMessage(title, host string, err error) string {
	var se *bferrors.StageError
	if !errors.As(err, &se) {
		return fmt.Sprintf("%s error: run failed on %s: %v", title, host, err)
	}

	if bferrors.IsEmptyArtifact(err) {
		what, _, _ := strings.Cut(se.Detail, " is empty or missing")
		return fmt.Sprintf("%s failed: %s is empty or missing on %s", title, what, host)
	}

	detail := se.Detail
	if detail == "" && se.Err != nil {
		detail = se.Err.Error()
	}
	return fmt.Sprintf("%s error: %s failed on %s: %s", title, cases.Title(language.English).String(se.Stage), host, oneLine(detail))
}

// oneLine collapses tool output to a single line of valid UTF-8 and caps it
// at 500 bytes, cutting on a rune boundary.
func oneLine(s string) string {
	s = strings.Join(strings.Fields(strings.ToValidUTF8(s, "\uFFFD")), " ")
	const limit = 500
	if len(s) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + "..."
	}
	return s
}
