package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/guessucla/campusguess/internal/auth"
	"github.com/guessucla/campusguess/internal/campusguess"
	"github.com/guessucla/campusguess/internal/database"
)

const timeFormat = "2006-01-02T15:04:05.000Z"

const guestName = "Guest"

// Document types stored as JSONB in per-model tables.

type locationDoc struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Coordinates string   `json:"coordinates"`
	ImageKey    string   `json:"imageKey"`
	Views       int      `json:"views"`
	Likes       int      `json:"likes"`
	Dislikes    int      `json:"dislikes"`
	Comments    []string `json:"comments"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
}

type userDoc struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	CreatedAt    string `json:"createdAt"`
}

// DocStore implements Store using per-model tables with JSONB data columns.
type DocStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewDocStore(ctx context.Context, db *sql.DB) (*DocStore, error) {
	err := database.Exec(ctx, db,
		// seq fixes the order that round indices address.
		`CREATE TABLE IF NOT EXISTS locations (
			seq  INTEGER PRIMARY KEY AUTOINCREMENT,
			id   TEXT UNIQUE NOT NULL,
			name TEXT UNIQUE NOT NULL,
			data JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			id          TEXT PRIMARY KEY,
			player_id   TEXT NOT NULL DEFAULT '',
			lobby_token TEXT NOT NULL DEFAULT '',
			total       INTEGER NOT NULL,
			finished_at TEXT NOT NULL,
			data        JSONB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS results_by_total ON results (total DESC, finished_at)`,
		`CREATE INDEX IF NOT EXISTS results_by_player ON results (player_id, finished_at)`,
		`CREATE INDEX IF NOT EXISTS results_by_lobby ON results (lobby_token)`,
		`CREATE TABLE IF NOT EXISTS users (
			id    TEXT PRIMARY KEY,
			email TEXT UNIQUE NOT NULL,
			data  JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS auth_sessions (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			expires_at TEXT NOT NULL
		)`,
	)
	if err != nil {
		return nil, err
	}
	return &DocStore{db: db, now: time.Now}, nil
}

func (s *DocStore) nowUTC() string {
	return s.now().UTC().Format(timeFormat)
}

func (s *DocStore) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// Locations

func (d locationDoc) toLocation() (campusguess.Location, error) {
	coord, err := campusguess.ParseCoord(d.Coordinates)
	if err != nil {
		return campusguess.Location{}, fmt.Errorf("location %s: %w", d.ID, err)
	}
	return campusguess.Location{
		ID:       d.ID,
		Name:     d.Name,
		Address:  d.Address,
		Coord:    coord,
		ImageKey: d.ImageKey,
		Views:    d.Views,
		Likes:    d.Likes,
		Dislikes: d.Dislikes,
		Comments: d.Comments,
	}, nil
}

func (s *DocStore) LocationCount(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting locations: %w", err)
	}
	return n, nil
}

// LocationsByIndices resolves each index against insertion order. The
// result has the same order as indices.
func (s *DocStore) LocationsByIndices(ctx context.Context, indices []int) ([]campusguess.Location, error) {
	locs := make([]campusguess.Location, 0, len(indices))
	for _, idx := range indices {
		if idx < 0 {
			return nil, fmt.Errorf("location index %d: %w", idx, ErrNotFound)
		}
		var data string
		err := s.db.QueryRowContext(ctx,
			`SELECT json(data) FROM locations ORDER BY seq LIMIT 1 OFFSET ?`, idx,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("location index %d: %w", idx, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		var doc locationDoc
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, err
		}
		loc, err := doc.toLocation()
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, nil
}

func (s *DocStore) LocationByID(ctx context.Context, id string) (campusguess.Location, error) {
	var doc locationDoc
	if err := s.get(ctx, "locations", id, &doc); err != nil {
		return campusguess.Location{}, err
	}
	return doc.toLocation()
}

func (s *DocStore) AllLocations(ctx context.Context) ([]campusguess.Location, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT json(data) FROM locations ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locs []campusguess.Location
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var doc locationDoc
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return nil, err
		}
		loc, err := doc.toLocation()
		if err != nil {
			return nil, err
		}
		locs = append(locs, loc)
	}
	return locs, rows.Err()
}

// UpsertLocation inserts loc or, when a location with the same name
// exists, updates its descriptive fields and keeps its ID and counters.
func (s *DocStore) UpsertLocation(ctx context.Context, loc campusguess.Location) (campusguess.Location, error) {
	name := strings.TrimSpace(loc.Name)
	if name == "" {
		return campusguess.Location{}, errors.New("location name is required")
	}
	now := s.nowUTC()

	var doc locationDoc
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx,
			`SELECT json(data) FROM locations WHERE name = ?`, name,
		).Scan(&data)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			doc = locationDoc{ID: uuid.NewString(), Comments: []string{}, CreatedAt: now}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(data), &doc); err != nil {
				return err
			}
		}

		doc.Name = name
		doc.Address = loc.Address
		doc.Coordinates = loc.Coord.String()
		if loc.ImageKey != "" {
			doc.ImageKey = loc.ImageKey
		}
		doc.UpdatedAt = now

		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO locations (id, name, data) VALUES (?, ?, jsonb(?))
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data`,
			doc.ID, doc.Name, string(raw),
		)
		return err
	})
	if err != nil {
		return campusguess.Location{}, fmt.Errorf("upserting location %q: %w", name, err)
	}
	return doc.toLocation()
}

// modifyLocation loads a location, applies fn, and saves it in a transaction.
func (s *DocStore) modifyLocation(ctx context.Context, id string, fn func(*locationDoc)) (campusguess.Location, error) {
	var doc locationDoc
	err := database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var data string
		err := tx.QueryRowContext(ctx,
			`SELECT json(data) FROM locations WHERE id = ?`, id,
		).Scan(&data)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		if err := json.Unmarshal([]byte(data), &doc); err != nil {
			return err
		}

		fn(&doc)
		doc.UpdatedAt = s.nowUTC()

		raw, err := json.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE locations SET data = jsonb(?) WHERE id = ?`, string(raw), id,
		)
		return err
	})
	if err != nil {
		return campusguess.Location{}, err
	}
	return doc.toLocation()
}

func (s *DocStore) RecordView(ctx context.Context, id string) (campusguess.Location, error) {
	return s.modifyLocation(ctx, id, func(d *locationDoc) { d.Views++ })
}

func (s *DocStore) RecordLike(ctx context.Context, id string, liked bool) (campusguess.Location, error) {
	return s.modifyLocation(ctx, id, func(d *locationDoc) {
		if liked {
			d.Likes++
		} else {
			d.Dislikes++
		}
	})
}

func (s *DocStore) AddComment(ctx context.Context, id, comment string) (campusguess.Location, error) {
	return s.modifyLocation(ctx, id, func(d *locationDoc) {
		d.Comments = append(d.Comments, comment)
	})
}

// Results

// SubmitSessionResult stores a finished session. Submitting the same
// session twice keeps the first record.
func (s *DocStore) SubmitSessionResult(ctx context.Context, res campusguess.Result) error {
	name := guestName
	if res.PlayerID != "" {
		var u userDoc
		err := s.get(ctx, "users", res.PlayerID, &u)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("resolving player name: %w", err)
		}
		if u.Name != "" {
			name = u.Name
		}
	}

	rec := GameRecord{
		SessionID:   res.SessionID,
		PlayerID:    res.PlayerID,
		PlayerName:  name,
		LobbyToken:  res.LobbyToken,
		Scores:      res.Scores,
		LocationIDs: res.LocationIDs,
		Total:       res.Total,
		FinishedAt:  res.FinishedAt.UTC(),
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, player_id, lobby_token, total, finished_at, data)
		 VALUES (?, ?, ?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO NOTHING`,
		rec.SessionID, rec.PlayerID, rec.LobbyToken, rec.Total,
		rec.FinishedAt.Format(timeFormat), string(raw),
	)
	if err != nil {
		return fmt.Errorf("inserting result: %w", err)
	}
	return nil
}

func (s *DocStore) queryRecords(ctx context.Context, query string, args ...any) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []GameRecord{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var rec GameRecord
		if err := json.Unmarshal([]byte(data), &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *DocStore) TopResults(ctx context.Context, limit int) ([]GameRecord, error) {
	return s.queryRecords(ctx,
		`SELECT json(data) FROM results ORDER BY total DESC, finished_at ASC LIMIT ?`, limit)
}

func (s *DocStore) LobbyResults(ctx context.Context, lobbyToken string) ([]GameRecord, error) {
	return s.queryRecords(ctx,
		`SELECT json(data) FROM results WHERE lobby_token = ? ORDER BY total DESC, finished_at ASC`, lobbyToken)
}

func (s *DocStore) UserGames(ctx context.Context, userID string, limit int) ([]GameRecord, error) {
	return s.queryRecords(ctx,
		`SELECT json(data) FROM results WHERE player_id = ? ORDER BY finished_at DESC LIMIT ?`, userID, limit)
}

func (s *DocStore) UserStats(ctx context.Context, userID string) (UserStats, error) {
	var st UserStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(MAX(total), 0), COALESCE(AVG(total), 0.0)
		 FROM results WHERE player_id = ?`, userID,
	).Scan(&st.GamesPlayed, &st.BestScore, &st.AverageScore)
	if err != nil {
		return UserStats{}, fmt.Errorf("computing stats: %w", err)
	}
	return st, nil
}

// Users

func (s *DocStore) CreateUser(ctx context.Context, name, email, passwordHash string) (User, error) {
	doc := userDoc{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    s.nowUTC(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return User{}, err
	}

	err = database.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, email).Scan(&exists)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO users (id, email, data) VALUES (?, ?, jsonb(?))`,
			doc.ID, doc.Email, string(raw),
		)
		return err
	})
	if err != nil {
		return User{}, err
	}
	return doc.toUser(), nil
}

func (d userDoc) toUser() User {
	created, _ := time.Parse(timeFormat, d.CreatedAt)
	return User{ID: d.ID, Name: d.Name, Email: d.Email, CreatedAt: created}
}

func (s *DocStore) UserByID(ctx context.Context, id string) (User, error) {
	var doc userDoc
	if err := s.get(ctx, "users", id, &doc); err != nil {
		return User{}, err
	}
	return doc.toUser(), nil
}

// UserByEmail implements auth.UserLookup.
func (s *DocStore) UserByEmail(ctx context.Context, email string) (auth.Identity, string, error) {
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM users WHERE email = ?`, email,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Identity{}, "", auth.ErrUserNotFound
	}
	if err != nil {
		return auth.Identity{}, "", err
	}

	var doc userDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		return auth.Identity{}, "", err
	}
	return auth.Identity{UserID: doc.ID, Name: doc.Name, Email: doc.Email}, doc.PasswordHash, nil
}

// Auth sessions

func (s *DocStore) CreateAuthSession(ctx context.Context, userID string, expiresAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auth_sessions (id, user_id, expires_at) VALUES (?, ?, ?)`,
		id, userID, expiresAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return "", fmt.Errorf("creating auth session: %w", err)
	}
	return id, nil
}

func (s *DocStore) AuthSessionValid(ctx context.Context, sessionID, userID string) (bool, error) {
	var expiresAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT expires_at FROM auth_sessions WHERE id = ? AND user_id = ?`, sessionID, userID,
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiresAt > s.nowUTC(), nil
}

func (s *DocStore) DeleteAuthSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, sessionID)
	return err
}

// DeleteExpiredAuthSessions removes sessions whose tokens can no longer
// validate and reports how many were removed.
func (s *DocStore) DeleteExpiredAuthSessions(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= ?`, s.nowUTC(),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
