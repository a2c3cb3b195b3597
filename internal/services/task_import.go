package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
	"unicode/utf8"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/tasktracker-backend/internal/data/repos"
	types "github.com/yungbote/tasktracker-backend/internal/domain"
	"github.com/yungbote/tasktracker-backend/internal/observability"
	"github.com/yungbote/tasktracker-backend/internal/platform/apierr"
	"github.com/yungbote/tasktracker-backend/internal/platform/dbctx"
	"github.com/yungbote/tasktracker-backend/internal/platform/logger"
	"github.com/yungbote/tasktracker-backend/internal/platform/spreadsheet"
)

// ImportColumns is the fixed column layout: title, description, completed,
// assigned user id, scheduled date.
const ImportColumns = 5

type SkippedRow struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// RowResult is the outcome of one sheet row: either a staged task or a skip
// reason, never both.
type RowResult struct {
	Row    int
	Task   *types.Task
	Reason string
}

func (r RowResult) Skipped() bool { return r.Task == nil }

type ImportResult struct {
	Created []*types.Task
	Skipped []SkippedRow
}

func (r *ImportResult) Message() string {
	if len(r.Created) == 0 {
		return "No new tasks were uploaded."
	}
	return fmt.Sprintf("%d tasks uploaded successfully.", len(r.Created))
}

type TaskImportService interface {
	ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportResult, error)
	ImportRows(ctx context.Context, rows []spreadsheet.Row) (*ImportResult, error)
}

type taskImportService struct {
	db       *gorm.DB
	log      *logger.Logger
	userRepo repos.UserRepo
	taskRepo repos.TaskRepo
	readOpts spreadsheet.Options
}

func NewTaskImportService(db *gorm.DB, log *logger.Logger, userRepo repos.UserRepo, taskRepo repos.TaskRepo, readOpts spreadsheet.Options) TaskImportService {
	serviceLog := log.With("service", "TaskImportService")
	return &taskImportService{
		db:       db,
		log:      serviceLog,
		userRepo: userRepo,
		taskRepo: taskRepo,
		readOpts: readOpts,
	}
}

func (s *taskImportService) ImportFile(ctx context.Context, filename string, r io.Reader) (*ImportResult, error) {
	rows, err := spreadsheet.Read(filename, r, s.readOpts)
	if err != nil {
		return nil, apierr.Validation("invalid_file", err)
	}
	return s.ImportRows(ctx, rows)
}

// ImportRows treats rows[0] as the header. Row problems become skip entries;
// only lookups and the final insert can fail the call.
func (s *taskImportService) ImportRows(ctx context.Context, rows []spreadsheet.Row) (*ImportResult, error) {
	if len(rows) > 0 {
		rows = rows[1:]
	}

	existingUsers, err := s.resolveUsers(ctx, rows)
	if err != nil {
		return nil, err
	}

	batch := map[dupKey]struct{}{}
	results := make([]RowResult, 0, len(rows))
	for _, row := range rows {
		if row.Blank() {
			results = append(results, RowResult{Row: row.Number, Reason: "Missing title"})
			continue
		}
		res, err := s.evaluateRow(ctx, row, existingUsers, batch)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}

	out := reduceResults(results)
	if err := s.commit(ctx, out.Created); err != nil {
		observability.Current().ObserveImport("failed", 0, len(out.Skipped))
		return nil, err
	}
	observability.Current().ObserveImport("ok", len(out.Created), len(out.Skipped))
	s.log.Ctx(ctx).Info("Task import finished", "created", len(out.Created), "skipped", len(out.Skipped))
	return out, nil
}

type dupKey struct {
	owner uint
	title string
	date  string
}

func (s *taskImportService) evaluateRow(ctx context.Context, row spreadsheet.Row, users map[uint]bool, batch map[dupKey]struct{}) (RowResult, error) {
	skip := func(reason string) (RowResult, error) {
		return RowResult{Row: row.Number, Reason: reason}, nil
	}

	if len(row.Cells) != ImportColumns {
		return skip("Invalid number of columns")
	}
	titleCell, descCell, completedCell, userCell, dateCell := row.Cells[0], row.Cells[1], row.Cells[2], row.Cells[3], row.Cells[4]

	title := titleCell.String()
	if title == "" {
		return skip("Missing title")
	}
	description := descCell.String()
	if description == "" {
		return skip("Missing description")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return skip(fmt.Sprintf("Title longer than %d characters", MaxTitleLength))
	}

	userID, ok := parseUserID(userCell)
	if !ok || !users[userID] {
		return skip(fmt.Sprintf("Invalid user ID: %s", userCell.String()))
	}

	date, ok := normalizeDate(dateCell)
	if !ok {
		return skip(fmt.Sprintf("Invalid date format: %s", dateCell.String()))
	}
	dateText := time.Time(date).Format(types.DateLayout)

	key := dupKey{owner: userID, title: title, date: dateText}
	if _, seen := batch[key]; seen {
		return skip(fmt.Sprintf("Duplicate task %q for %s appears earlier in this file", title, dateText))
	}
	exists, err := s.taskRepo.ExistsForOwnerOnDate(dbctx.Context{Ctx: ctx}, userID, title, date)
	if err != nil {
		return RowResult{}, storageErr("duplicate_check_failed", err)
	}
	if exists {
		return skip(fmt.Sprintf("Duplicate task %q for %s already exists", title, dateText))
	}
	batch[key] = struct{}{}

	return RowResult{
		Row: row.Number,
		Task: &types.Task{
			Title:         title,
			Description:   description,
			Completed:     completedCell.Truthy(),
			AssignedToID:  userID,
			ScheduledDate: &date,
		},
	}, nil
}

// resolveUsers loads every referenced user id in one query.
func (s *taskImportService) resolveUsers(ctx context.Context, rows []spreadsheet.Row) (map[uint]bool, error) {
	seen := map[uint]bool{}
	var ids []uint
	for _, row := range rows {
		if len(row.Cells) != ImportColumns {
			continue
		}
		if id, ok := parseUserID(row.Cells[3]); ok && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	found, err := s.userRepo.GetByIDs(dbctx.Context{Ctx: ctx}, ids)
	if err != nil {
		return nil, storageErr("user_lookup_failed", err)
	}
	existing := make(map[uint]bool, len(found))
	for _, u := range found {
		if u != nil {
			existing[u.ID] = true
		}
	}
	return existing, nil
}

func (s *taskImportService) commit(ctx context.Context, tasks []*types.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.taskRepo.Create(dbctx.Context{Ctx: ctx, Tx: tx}, tasks)
		return err
	})
	if err == nil {
		return nil
	}
	if isForeignKeyViolation(err) {
		// A referenced user was removed between the scan and the insert.
		return apierr.Validation("assigned_user_missing", errors.New("one or more assigned users no longer exist"))
	}
	s.log.Ctx(ctx).Error("Task import commit failed", "tasks", len(tasks), "error", err)
	return storageErr("import_commit_failed", err)
}

func reduceResults(results []RowResult) *ImportResult {
	out := &ImportResult{Created: []*types.Task{}, Skipped: []SkippedRow{}}
	for _, r := range results {
		if r.Skipped() {
			out.Skipped = append(out.Skipped, SkippedRow{Row: r.Row, Reason: r.Reason})
			continue
		}
		out.Created = append(out.Created, r.Task)
	}
	return out
}

func parseUserID(c spreadsheet.Cell) (uint, bool) {
	switch c.Kind {
	case spreadsheet.KindNumber:
		if c.Number < 1 || c.Number != math.Trunc(c.Number) || c.Number > math.MaxUint32 {
			return 0, false
		}
		return uint(c.Number), true
	case spreadsheet.KindText:
		id, err := strconv.ParseUint(c.String(), 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return uint(id), true
	}
	return 0, false
}

// normalizeDate accepts native date cells (time dropped) and YYYY-MM-DD text.
func normalizeDate(c spreadsheet.Cell) (datatypes.Date, bool) {
	switch c.Kind {
	case spreadsheet.KindDate:
		return types.NewDate(c.Time), true
	case spreadsheet.KindText:
		return parseDate(c.String())
	}
	return datatypes.Date{}, false
}
