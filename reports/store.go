package reports

import (
	"context"
	"strings"

	"emperror.dev/errors"
	"github.com/cirelion/narc/common"
	"github.com/jinzhu/gorm"
	"github.com/lib/pq"
)

type Store struct {
	db *gorm.DB

	// findDuplicate looks up an earlier report of the same message inside the
	// create transaction
	findDuplicate func(tx *gorm.DB, accuserID, messageID int64) (*Report, error)
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, findDuplicate: findReport}
}

type OriginMessage struct {
	ChannelID int64
	MessageID int64
	Content   string
}

type CreateReportParams struct {
	GuildID        int64
	AccuserID      int64
	ReportedUserID int64
	Origin         *OriginMessage
	Reason         *string
}

type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeDuplicate
)

func (o Outcome) String() string {
	if o == OutcomeDuplicate {
		return "duplicate"
	}

	return "created"
}

type CreateResult struct {
	Outcome  Outcome
	ReportID int64
	// ArchiveID is the archived version of the origin message, 0 without one
	ArchiveID int64
}

var errUniqueViolation = errors.New("unique violation")

// CreateReport archives the origin message and inserts a new Unhandled report,
// unless the accuser already reported that message.
func (s *Store) CreateReport(ctx context.Context, p CreateReportParams) (*CreateResult, error) {
	result := &CreateResult{}

	err := s.inTx(ctx, func(tx *gorm.DB) error {
		if p.Origin != nil && common.IsPostgres(tx) {
			// serializes concurrent reports of the same message, released on commit
			err := tx.Exec("SELECT pg_advisory_xact_lock(?)", p.Origin.MessageID).Error
			if err != nil {
				return errors.WrapIf(err, "advisory lock")
			}
		}

		if p.Origin != nil {
			archiveID, err := archiveMessage(tx, p.Origin.MessageID, p.Origin.Content)
			if err != nil {
				return err
			}
			result.ArchiveID = archiveID

			existing, err := s.findDuplicate(tx, p.AccuserID, p.Origin.MessageID)
			if err != nil {
				return err
			}

			if existing != nil {
				result.Outcome = OutcomeDuplicate
				result.ReportID = existing.ID
				return nil
			}
		}

		report := &Report{
			GuildID:        p.GuildID,
			AccuserUserID:  p.AccuserID,
			ReportedUserID: p.ReportedUserID,
			Status:         StatusUnhandled,
			Reason:         p.Reason,
		}

		if p.Origin != nil {
			report.ChannelID = &p.Origin.ChannelID
			report.MessageID = &p.Origin.MessageID
		}

		if err := tx.Create(report).Error; err != nil {
			if isUniqueViolation(err) {
				return errUniqueViolation
			}
			return errors.WrapIf(err, "insert report")
		}

		result.Outcome = OutcomeCreated
		result.ReportID = report.ID
		return nil
	})

	if errors.Is(err, errUniqueViolation) {
		// lost an insert race the lock didn't cover (no advisory locks outside postgres)
		existing, findErr := findReport(s.db, p.AccuserID, p.Origin.MessageID)
		if findErr != nil {
			return nil, findErr
		}
		if existing == nil {
			return nil, errors.WrapIf(err, "unique violation without a conflicting report")
		}

		archive, archiveErr := s.LatestArchive(p.Origin.MessageID)
		if archiveErr != nil {
			return nil, archiveErr
		}

		result = &CreateResult{Outcome: OutcomeDuplicate, ReportID: existing.ID}
		if archive != nil {
			result.ArchiveID = archive.ID
		}
		return result, nil
	}

	if err != nil {
		return nil, err
	}

	return result, nil
}

func (s *Store) UpdateStatus(ctx context.Context, reportID int64, status Status) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return updateReport(tx, "UpdateStatus", reportID, map[string]interface{}{"status": status})
	})
}

func (s *Store) UpdateReason(ctx context.Context, reportID int64, reason string) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return updateReport(tx, "UpdateReason", reportID, map[string]interface{}{"reason": reason})
	})
}

// SetHandler records the moderator who handled the report on its mod view
func (s *Store) SetHandler(ctx context.Context, reportID, moderatorID int64) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		return setHandler(tx, reportID, moderatorID)
	})
}

// Transition moves a report to status to, unless it's already terminal
func (s *Store) Transition(ctx context.Context, reportID int64, to Status) (Transition, error) {
	var t Transition
	err := s.inTx(ctx, func(tx *gorm.DB) (err error) {
		t, err = transition(tx, reportID, to)
		return err
	})
	return t, err
}

// Resolve is Transition to a terminal status that also records the handler,
// the handler is only written if the status changed.
func (s *Store) Resolve(ctx context.Context, reportID, moderatorID int64, to Status) (Transition, error) {
	if !to.IsTerminal() {
		return Transition{}, errors.Errorf("resolve to non terminal status %s", to)
	}

	var t Transition
	err := s.inTx(ctx, func(tx *gorm.DB) (err error) {
		t, err = transition(tx, reportID, to)
		if err != nil || !t.Changed() {
			return err
		}

		return setHandler(tx, reportID, moderatorID)
	})
	return t, err
}

func (s *Store) Report(reportID int64) (*Report, error) {
	var report Report
	err := s.db.Where("id = ?", reportID).First(&report).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, ErrReportNotFound
	}

	return &report, errors.WrapIf(err, "get report")
}

// UserView returns the user view of a report, nil if it was never rendered
func (s *Store) UserView(reportID int64) (*UserViewRecord, error) {
	return firstOrNil[UserViewRecord](s.db.Where("report_id = ?", reportID))
}

// ModView returns the mod view of a report, nil if it was never rendered
func (s *Store) ModView(reportID int64) (*ModViewRecord, error) {
	return firstOrNil[ModViewRecord](s.db.Where("report_id = ?", reportID))
}

func (s *Store) ModViewByMessage(channelID, messageID int64) (*ModViewRecord, error) {
	return firstOrNil[ModViewRecord](s.db.Where("channel_id = ? AND message_id = ?", channelID, messageID))
}

func (s *Store) UserViewByMessage(messageID int64) (*UserViewRecord, error) {
	return firstOrNil[UserViewRecord](s.db.Where("message_id = ?", messageID))
}

func (s *Store) LatestArchive(messageID int64) (*MessageArchive, error) {
	return firstOrNil[MessageArchive](s.db.Where("message_id = ?", messageID).Order("id desc"))
}

func (s *Store) SaveUserView(rec *UserViewRecord) error {
	return errors.WrapIf(s.db.Save(rec).Error, "save user view")
}

// SaveModView stores where the mod view lives, leaving the handler alone
func (s *Store) SaveModView(ctx context.Context, rec *ModViewRecord) error {
	return s.inTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&ModViewRecord{}).Where("report_id = ?", rec.ReportID).Updates(map[string]interface{}{
			"channel_id":         rec.ChannelID,
			"message_id":         rec.MessageID,
			"preview_archive_id": rec.PreviewArchiveID,
		})
		if res.Error != nil {
			return errors.WrapIf(res.Error, "update mod view")
		}

		if res.RowsAffected > 0 {
			return nil
		}

		return errors.WrapIf(tx.Create(rec).Error, "insert mod view")
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	tx := s.db.BeginTx(ctx, nil)
	if tx.Error != nil {
		return errors.WrapIf(tx.Error, "begin tx")
	}

	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	committed = true
	return errors.WrapIf(tx.Commit().Error, "commit tx")
}

func transition(tx *gorm.DB, reportID int64, to Status) (Transition, error) {
	q := tx
	if common.IsPostgres(tx) {
		q = tx.Set("gorm:query_option", "FOR UPDATE")
	}

	var report Report
	err := q.Where("id = ?", reportID).First(&report).Error
	if gorm.IsRecordNotFoundError(err) {
		return Transition{}, ErrReportNotFound
	}
	if err != nil {
		return Transition{}, errors.WrapIf(err, "load report")
	}

	t := Transition{From: report.Status, To: report.Status}
	if report.Status.IsTerminal() || report.Status == to {
		return t, nil
	}

	if err = updateReport(tx, "Transition", reportID, map[string]interface{}{"status": to}); err != nil {
		return t, err
	}

	t.To = to
	return t, nil
}

func updateReport(tx *gorm.DB, op string, reportID int64, fields map[string]interface{}) error {
	res := tx.Model(&Report{}).Where("id = ?", reportID).Updates(fields)
	if res.Error != nil {
		return errors.WrapIf(res.Error, op)
	}

	if res.RowsAffected != 1 {
		return &RowCountError{Op: op, ReportID: reportID, Affected: res.RowsAffected}
	}

	return nil
}

func setHandler(tx *gorm.DB, reportID, moderatorID int64) error {
	res := tx.Model(&ModViewRecord{}).Where("report_id = ?", reportID).Update("handler_user_id", moderatorID)
	if res.Error != nil {
		return errors.WrapIf(res.Error, "set handler")
	}

	if res.RowsAffected != 1 {
		return &RowCountError{Op: "SetHandler", ReportID: reportID, Affected: res.RowsAffected}
	}

	return nil
}

// archiveMessage stores content as a new version unless it matches the latest
func archiveMessage(tx *gorm.DB, messageID int64, content string) (int64, error) {
	latest, err := firstOrNil[MessageArchive](tx.Where("message_id = ?", messageID).Order("id desc"))
	if err != nil {
		return 0, err
	}

	if latest != nil && latest.Content == content {
		return latest.ID, nil
	}

	archive := &MessageArchive{MessageID: messageID, Content: content}
	if err = tx.Create(archive).Error; err != nil {
		return 0, errors.WrapIf(err, "archive message")
	}

	return archive.ID, nil
}

func findReport(db *gorm.DB, accuserID, messageID int64) (*Report, error) {
	return firstOrNil[Report](db.Where("message_id = ? AND accuser_user_id = ?", messageID, accuserID))
}

func firstOrNil[T any](q *gorm.DB) (*T, error) {
	var rows []*T
	if err := q.Limit(1).Find(&rows).Error; err != nil {
		return nil, errors.WrapIf(err, "query")
	}

	if len(rows) == 0 {
		return nil, nil
	}

	return rows[0], nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
