package reports

import (
	"fmt"

	"emperror.dev/errors"
	"github.com/cirelion/narc/commands"
)

var ErrReportNotFound = errors.New("report not found")

const (
	ErrUnconfiguredServer commands.UserError = "This server hasn't been set up yet, an administrator has to run the `setup` command first"
	ErrPromptTimeout      commands.UserError = "You took too long to respond, please try again"
	ErrUnparseableEmoji   commands.UserError = "That doesn't look like an emoji I can use"
	ErrUnknownUser        commands.UserError = "I couldn't find that user, mention them or use their ID"
	ErrBadChannel         commands.UserError = "That isn't a channel on this server, mention it like #reports"
)

// RowCountError means a write that must touch exactly one row didn't. The
// database no longer agrees with what the bot believes.
type RowCountError struct {
	Op       string
	ReportID int64
	Affected int64
}

func (e *RowCountError) Error() string {
	return fmt.Sprintf("%s on report %d affected %d rows, expected exactly 1", e.Op, e.ReportID, e.Affected)
}
