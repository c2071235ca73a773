package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/frahmantamala/scale-custody/internal/audit"
	auditPostgres "github.com/frahmantamala/scale-custody/internal/audit/postgres"
	"github.com/frahmantamala/scale-custody/internal/core/common/jsontime"
	"github.com/frahmantamala/scale-custody/internal/core/custody"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail commands",
}

type auditListFlags struct {
	userID       int64
	scaleID      int64
	assignmentID int64
	actionType   string
	startDate    string
	endDate      string
	limit        int
}

var auditFlags auditListFlags

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print audit entries as JSON lines, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter, err := auditFlags.filter()
		if err != nil {
			return err
		}

		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer closeDependencies(deps)

		service := audit.NewService(auditPostgres.NewAuditRepository(deps.Gorm), deps.Logger)
		logs, err := service.ListUnchecked(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return writeJSONLines(cmd.OutOrStdout(), logs)
	},
}

func init() {
	f := auditListCmd.Flags()
	f.Int64Var(&auditFlags.userID, "user-id", 0, "only entries by this user")
	f.Int64Var(&auditFlags.scaleID, "scale-id", 0, "only entries about this scale")
	f.Int64Var(&auditFlags.assignmentID, "assignment-id", 0, "only entries about this assignment")
	f.StringVar(&auditFlags.actionType, "action", "", "created, updated, assigned, returned or calibrated")
	f.StringVar(&auditFlags.startDate, "since", "", "RFC 3339 timestamp or YYYY-MM-DD")
	f.StringVar(&auditFlags.endDate, "until", "", "RFC 3339 timestamp or YYYY-MM-DD")
	f.IntVar(&auditFlags.limit, "limit", audit.DefaultListLimit, "maximum entries to print")

	auditCmd.AddCommand(auditListCmd)
}

func (a auditListFlags) filter() (audit.Filter, error) {
	f := audit.Filter{
		ActionType: custody.ActionType(a.actionType),
		Limit:      a.limit,
	}
	if a.userID > 0 {
		f.UserID = &a.userID
	}
	if a.scaleID > 0 {
		f.ScaleID = &a.scaleID
	}
	if a.assignmentID > 0 {
		f.AssignmentID = &a.assignmentID
	}

	var err error
	if f.StartDate, err = parseOptionalTime("since", a.startDate); err != nil {
		return f, err
	}
	if f.EndDate, err = parseOptionalTime("until", a.endDate); err != nil {
		return f, err
	}
	return f, nil
}

func parseOptionalTime(flag, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := jsontime.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", flag, err)
	}
	return &t, nil
}

func writeJSONLines(w io.Writer, logs []*audit.AuditLog) error {
	enc := json.NewEncoder(w)
	for _, l := range logs {
		if err := enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}
