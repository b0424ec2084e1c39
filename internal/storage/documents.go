package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/claude/trainctx/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// rawDoc is one row as read from a document table.
type rawDoc struct {
	ID  string
	Doc []byte
}

// decodeDocs unmarshals each row, skipping and logging the ones that do not
// decode. A malformed document never fails the read.
func decodeDocs[T any](log *slog.Logger, kind, userID string, rows []rawDoc) []T {
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		var v T
		if err := json.Unmarshal(r.Doc, &v); err != nil {
			log.Warn("skipping malformed document", "kind", kind, "id", r.ID, "user_id", userID, "error", err)
			continue
		}
		out = append(out, v)
	}
	return out
}

func (db *DB) queryDocs(ctx context.Context, query string, args ...any) ([]rawDoc, error) {
	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rawDoc
	for rows.Next() {
		var r rawDoc
		if err := rows.Scan(&r.ID, &r.Doc); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func listDocs[T any](ctx context.Context, db *DB, kind, userID, query string, args ...any) ([]T, error) {
	rows, err := db.queryDocs(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", kind, err)
	}
	return decodeDocs[T](db.log, kind, userID, rows), nil
}

func limitOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ListWorkouts returns the user's personal workouts, most recent first.
func (db *DB) ListWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error) {
	return listDocs[models.WorkoutDoc](ctx, db, "workouts", userID,
		`SELECT id, doc FROM workouts
		 WHERE user_id = $1
		 ORDER BY workout_date DESC NULLS LAST, updated_at DESC
		 LIMIT $2`,
		userID, limitOr(db.Limits.Workouts, DefaultWorkoutLimit))
}

// ListGroupWorkouts returns group sessions assigned to the user, most recent first.
func (db *DB) ListGroupWorkouts(ctx context.Context, userID string) ([]models.WorkoutDoc, error) {
	return listDocs[models.WorkoutDoc](ctx, db, "group_workouts", userID,
		`SELECT id, doc FROM group_workouts
		 WHERE user_id = $1
		 ORDER BY workout_date DESC NULLS LAST, updated_at DESC
		 LIMIT $2`,
		userID, limitOr(db.Limits.GroupWorkouts, DefaultGroupLimit))
}

// ListGoals returns all of the user's goals. Status filtering happens in assembly.
func (db *DB) ListGoals(ctx context.Context, userID string) ([]models.GoalDoc, error) {
	return listDocs[models.GoalDoc](ctx, db, "goals", userID,
		`SELECT id, doc FROM goals WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
}

// ListSchedules returns all of the user's schedules.
func (db *DB) ListSchedules(ctx context.Context, userID string) ([]models.ScheduleDoc, error) {
	return listDocs[models.ScheduleDoc](ctx, db, "schedules", userID,
		`SELECT id, doc FROM schedules WHERE user_id = $1 ORDER BY updated_at DESC`,
		userID)
}

// ListFormChecks returns the user's most recent form reviews.
func (db *DB) ListFormChecks(ctx context.Context, userID string) ([]models.FormCheckDoc, error) {
	return listDocs[models.FormCheckDoc](ctx, db, "form_checks", userID,
		`SELECT id, doc FROM form_checks
		 WHERE user_id = $1
		 ORDER BY check_date DESC NULLS LAST, updated_at DESC
		 LIMIT $2`,
		userID, limitOr(db.Limits.FormChecks, DefaultFormCheckLimit))
}

// ListCoachNotes returns the newest coach notes for the user.
func (db *DB) ListCoachNotes(ctx context.Context, userID string) ([]models.CoachNoteDoc, error) {
	return listDocs[models.CoachNoteDoc](ctx, db, "coach_notes", userID,
		`SELECT id, doc FROM coach_notes
		 WHERE user_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		userID, limitOr(db.Limits.CoachNotes, DefaultCoachNoteLimit))
}

// GetProfile returns the user's profile, or nil if none is stored.
func (db *DB) GetProfile(ctx context.Context, userID string) (*models.ProfileDoc, error) {
	var raw []byte
	err := db.Pool.QueryRow(ctx, `SELECT doc FROM profiles WHERE user_id = $1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying profile: %w", err)
	}

	var p models.ProfileDoc
	if err := json.Unmarshal(raw, &p); err != nil {
		db.log.Warn("skipping malformed document", "kind", "profiles", "user_id", userID, "error", err)
		return nil, nil
	}
	return &p, nil
}

// InsertWorkout stores a personal workout. A missing id is generated.
// Returns true if inserted, false if the user already has a workout with that id.
func (db *DB) InsertWorkout(ctx context.Context, userID string, doc models.WorkoutDoc) (bool, error) {
	row, err := workoutRow(userID, doc)
	if err != nil {
		return false, err
	}

	tag, err := db.Pool.Exec(ctx,
		`INSERT INTO workouts (id, user_id, status, workout_date, doc)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING`,
		row.id, row.userID, row.status, row.date, row.doc)
	if err != nil {
		return false, fmt.Errorf("inserting workout: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

type workoutInsert struct {
	id     string
	userID string
	status string
	date   *time.Time
	doc    []byte
}

// workoutRow prepares the indexed columns for a workout document.
func workoutRow(userID string, doc models.WorkoutDoc) (workoutInsert, error) {
	if strings.TrimSpace(userID) == "" {
		return workoutInsert{}, errors.New("inserting workout: empty user id")
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	doc.UserID = userID

	raw, err := json.Marshal(doc)
	if err != nil {
		return workoutInsert{}, fmt.Errorf("encoding workout %s: %w", doc.ID, err)
	}

	row := workoutInsert{
		id:     doc.ID,
		userID: userID,
		status: strings.ToLower(strings.TrimSpace(doc.Status)),
		doc:    raw,
	}
	if doc.Date.Valid {
		t := doc.Date.Time.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		row.date = &day
	}
	return row, nil
}

// SourceVersion returns an opaque token that changes whenever any of the
// user's documents is added, updated or deleted. It is empty when the user
// has no documents.
func (db *DB) SourceVersion(ctx context.Context, userID string) (string, error) {
	var micros *int64
	var count int64
	err := db.Pool.QueryRow(ctx,
		`SELECT (EXTRACT(EPOCH FROM MAX(updated_at)) * 1000000)::bigint, COUNT(*) FROM (
			SELECT updated_at FROM workouts WHERE user_id = $1
			UNION ALL SELECT updated_at FROM group_workouts WHERE user_id = $1
			UNION ALL SELECT updated_at FROM goals WHERE user_id = $1
			UNION ALL SELECT updated_at FROM schedules WHERE user_id = $1
			UNION ALL SELECT updated_at FROM form_checks WHERE user_id = $1
			UNION ALL SELECT updated_at FROM coach_notes WHERE user_id = $1
			UNION ALL SELECT updated_at FROM profiles WHERE user_id = $1
		) u`, userID).Scan(&micros, &count)
	if err != nil {
		return "", fmt.Errorf("querying source version: %w", err)
	}
	return versionToken(micros, count), nil
}

// versionToken combines the newest update time with the row count, so a
// deleted row changes the token even when the newest row is untouched.
func versionToken(micros *int64, count int64) string {
	if micros == nil || count == 0 {
		return ""
	}
	return strconv.FormatInt(*micros, 36) + "." + strconv.FormatInt(count, 36)
}
