package applicants

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const applicantColumns = `a.id, a.telegram_id, a.telegram_username, a.type, a.name, a.phone, a.church, a.address,
  a.status, a.photo_url, a.reviewer_id, u.username, a.reviewer_notes, a.created_at, a.updated_at`

const applicantFrom = `FROM applicants a LEFT JOIN users u ON a.reviewer_id = u.id`

const insertApplicantSQL = `INSERT INTO applicants (telegram_id, telegram_username, type, name, phone, church, address, photo_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, status, created_at, updated_at`

const insertSingerDetailsSQL = `INSERT INTO singer_details (applicant_id, worship_ministry_involved, audio_url, audio_duration)
VALUES ($1, $2, $3, $4)`

const insertMissionDetailsSQL = `INSERT INTO mission_details (applicant_id, profession, mission_interest, bio, motivation)
VALUES ($1, $2, $3, $4, $5)`

const reviewApplicantSQL = `UPDATE applicants SET status = $1, reviewer_id = $2, reviewer_notes = $3, updated_at = now()
WHERE id = $4 AND status = 'pending'`

const statsSQL = `SELECT
  COUNT(*),
  COUNT(*) FILTER (WHERE status = 'pending'),
  COUNT(*) FILTER (WHERE status = 'accepted'),
  COUNT(*) FILTER (WHERE status = 'rejected'),
  COUNT(*) FILTER (WHERE type = 'singer'),
  COUNT(*) FILTER (WHERE type = 'mission')
FROM applicants`

// Store persists applicants in PostgreSQL.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSinger writes the applicant and singer details in one transaction.
func (s *Store) CreateSinger(ctx context.Context, app SingerApplication) (Applicant, error) {
	out := applicantFromProfile(app.Profile, TypeSinger)
	details := app.Details
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertApplicant(ctx, tx, &out); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertSingerDetailsSQL,
			out.ID, details.WorshipMinistryInvolved, details.AudioURL, nullInt(details.AudioDuration))
		if err != nil {
			return fmt.Errorf("insert singer details: %w", err)
		}
		return nil
	})
	if err != nil {
		return Applicant{}, err
	}
	out.Singer = &details
	return out, nil
}

// CreateMission writes the applicant and mission details in one transaction.
func (s *Store) CreateMission(ctx context.Context, app MissionApplication) (Applicant, error) {
	out := applicantFromProfile(app.Profile, TypeMission)
	details := app.Details
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertApplicant(ctx, tx, &out); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertMissionDetailsSQL,
			out.ID, details.Profession, details.MissionInterest, details.Bio, details.Motivation)
		if err != nil {
			return fmt.Errorf("insert mission details: %w", err)
		}
		return nil
	})
	if err != nil {
		return Applicant{}, err
	}
	out.Mission = &details
	return out, nil
}

// FindByTelegramID returns the most recent application for a chat identity.
func (s *Store) FindByTelegramID(ctx context.Context, telegramID string) (Applicant, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+applicantColumns+` `+applicantFrom+` WHERE a.telegram_id = $1 ORDER BY a.created_at DESC LIMIT 1`,
		telegramID)
	a, err := scanApplicant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Applicant{}, ErrNotFound
	}
	if err != nil {
		return Applicant{}, fmt.Errorf("find applicant by telegram id: %w", err)
	}
	return a, nil
}

// Get returns an applicant with its type-specific details.
func (s *Store) Get(ctx context.Context, id int64) (Applicant, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+applicantColumns+` `+applicantFrom+` WHERE a.id = $1`, id)
	a, err := scanApplicant(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Applicant{}, ErrNotFound
	}
	if err != nil {
		return Applicant{}, fmt.Errorf("get applicant: %w", err)
	}

	switch a.Type {
	case TypeSinger:
		var (
			d        SingerDetails
			duration sql.NullInt64
		)
		err = s.db.QueryRowContext(ctx,
			`SELECT worship_ministry_involved, audio_url, audio_duration FROM singer_details WHERE applicant_id = $1`, id).
			Scan(&d.WorshipMinistryInvolved, &d.AudioURL, &duration)
		if err == nil {
			d.AudioDuration = int(duration.Int64)
			a.Singer = &d
		}
	case TypeMission:
		var d MissionDetails
		err = s.db.QueryRowContext(ctx,
			`SELECT profession, mission_interest, bio, motivation FROM mission_details WHERE applicant_id = $1`, id).
			Scan(&d.Profession, &d.MissionInterest, &d.Bio, &d.Motivation)
		if err == nil {
			a.Mission = &d
		}
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Applicant{}, fmt.Errorf("get applicant details: %w", err)
	}
	return a, nil
}

// List returns a page of applicants matching the filter, newest first.
// A zero Limit returns every match.
func (s *Store) List(ctx context.Context, f Filter) (Page, error) {
	where, args := buildWhere(f)

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM applicants a`+where, args...).Scan(&total); err != nil {
		return Page{}, fmt.Errorf("count applicants: %w", err)
	}

	query := `SELECT ` + applicantColumns + ` ` + applicantFrom + where + ` ORDER BY a.created_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("list applicants: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	items := make([]Applicant, 0)
	for rows.Next() {
		a, err := scanApplicant(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan applicant: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("list applicants: %w", err)
	}
	return Page{Items: items, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}

func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, statsSQL).
		Scan(&st.Total, &st.Pending, &st.Accepted, &st.Rejected, &st.Singers, &st.Missions)
	if err != nil {
		return Stats{}, fmt.Errorf("applicant stats: %w", err)
	}
	return st, nil
}

// UpdateStatus records a review decision on a pending applicant. It returns
// ErrAlreadyReviewed when the applicant was already decided.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status Status, reviewerID int64, notes string) error {
	res, err := s.db.ExecContext(ctx, reviewApplicantSQL, string(status), reviewerID, nullString(notes), id)
	if err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	if n > 0 {
		return nil
	}
	var current string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM applicants WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read applicant status: %w", err)
	}
	return fmt.Errorf("%w: status is %s", ErrAlreadyReviewed, current)
}

// withTx runs fn in a transaction, rolling back unless it commits.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	committed = true
	return nil
}

func insertApplicant(ctx context.Context, tx *sql.Tx, a *Applicant) error {
	var status string
	err := tx.QueryRowContext(ctx, insertApplicantSQL,
		a.TelegramID, nullString(a.TelegramUsername), string(a.Type), a.Name, a.Phone, a.Church, a.Address, nullString(a.PhotoURL)).
		Scan(&a.ID, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert applicant: %w", err)
	}
	a.Status = Status(status)
	return nil
}

func applicantFromProfile(p Profile, t Type) Applicant {
	return Applicant{
		TelegramID:       p.TelegramID,
		TelegramUsername: p.TelegramUsername,
		Type:             t,
		Name:             p.Name,
		Phone:            p.Phone,
		Church:           p.Church,
		Address:          p.Address,
		Status:           StatusPending,
		PhotoURL:         p.PhotoURL,
	}
}

func buildWhere(f Filter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Type != "" {
		args = append(args, string(f.Type))
		clauses = append(clauses, "a.type = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, "a.status = $"+strconv.Itoa(len(args)))
	}
	if search := strings.TrimSpace(f.Search); search != "" {
		args = append(args, "%"+search+"%")
		n := strconv.Itoa(len(args))
		clauses = append(clauses, "(a.name ILIKE $"+n+" OR a.phone ILIKE $"+n+" OR a.church ILIKE $"+n+")")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApplicant(row rowScanner) (Applicant, error) {
	var (
		a                                Applicant
		typ, status                      string
		username, photo, reviewer, notes sql.NullString
		reviewerID                       sql.NullInt64
	)
	err := row.Scan(&a.ID, &a.TelegramID, &username, &typ, &a.Name, &a.Phone, &a.Church, &a.Address,
		&status, &photo, &reviewerID, &reviewer, &notes, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return Applicant{}, err
	}
	a.Type = Type(typ)
	a.Status = Status(status)
	a.TelegramUsername = username.String
	a.PhotoURL = photo.String
	a.ReviewerName = reviewer.String
	a.ReviewerNotes = notes.String
	if reviewerID.Valid {
		id := reviewerID.Int64
		a.ReviewerID = &id
	}
	return a, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt(n int) any {
	if n <= 0 {
		return nil
	}
	return n
}
