package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"citizen-engagement/internal/issues"
	"citizen-engagement/pkg/utils"

	"golang.org/x/sync/errgroup"
)

//go:embed schema.sql
var schemaFS embed.FS

// Migrate applies the schema. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range splitStatements(string(schema)) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// splitStatements drops "--" comment lines and splits the rest on ";".
func splitStatements(schema string) []string {
	var b strings.Builder
	for _, line := range strings.Split(schema, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	var out []string
	for _, stmt := range strings.Split(b.String(), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// Dialect rewrites the "?" placeholders used in this package for drivers
// that number their parameters.
type Dialect int

const (
	DialectSQLite Dialect = iota
	DialectPostgres
)

// DialectFor maps a database/sql driver name to its Dialect.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "pgx", "postgres":
		return DialectPostgres, nil
	case "sqlite":
		return DialectSQLite, nil
	default:
		return 0, fmt.Errorf("store: unsupported driver %q", driver)
	}
}

func (d Dialect) Rebind(q string) string {
	if d != DialectPostgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const defaultResolveLimit = 8

// SQLRepo is the database/sql repository. Saves are optimistic: the issue row
// is updated only if its version still matches the loaded one, and the row
// update plus the new comment and action rows commit in one transaction.
type SQLRepo struct {
	db           *sql.DB
	dialect      Dialect
	resolveLimit int
}

func NewSQLRepo(db *sql.DB, dialect Dialect) *SQLRepo {
	return &SQLRepo{db: db, dialect: dialect, resolveLimit: defaultResolveLimit}
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *SQLRepo) LoadIssue(ctx context.Context, id string) (issues.Issue, error) {
	return r.loadIssue(ctx, r.db, id)
}

func (r *SQLRepo) loadIssue(ctx context.Context, q querier, id string) (issues.Issue, error) {
	const issueQ = `
SELECT id, description, lat, lng, state, tags, issue_type_id, owner_id, assignee_id, created_on, updated_on, version
FROM issues
WHERE id = ?
`
	var (
		i                        issues.Issue
		state, tagsJSON          string
		typeID, ownerID, assigID sql.NullString
		created, updated         string
	)
	if err := q.QueryRowContext(ctx, r.dialect.Rebind(issueQ), id).Scan(
		&i.ID,
		&i.Description,
		&i.Lat,
		&i.Lng,
		&state,
		&tagsJSON,
		&typeID,
		&ownerID,
		&assigID,
		&created,
		&updated,
		&i.Version,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issues.Issue{}, fmt.Errorf("issue %q: %w", id, issues.ErrNotFound)
		}
		return issues.Issue{}, err
	}
	i.State = issues.State(state)
	i.IssueTypeID, i.OwnerID, i.AssigneeID = typeID.String, ownerID.String, assigID.String

	var err error
	if i.Tags, err = decodeStrings(tagsJSON); err != nil {
		return issues.Issue{}, fmt.Errorf("issue %q tags: %w", id, err)
	}
	if i.CreatedOn, err = parseTime(created); err != nil {
		return issues.Issue{}, err
	}
	if i.UpdatedOn, err = parseTime(updated); err != nil {
		return issues.Issue{}, err
	}
	if i.Comments, err = r.loadComments(ctx, q, id); err != nil {
		return issues.Issue{}, err
	}
	if i.Actions, err = r.loadActions(ctx, q, id); err != nil {
		return issues.Issue{}, err
	}
	return i, nil
}

func (r *SQLRepo) loadComments(ctx context.Context, q querier, issueID string) ([]issues.Comment, error) {
	const commentsQ = `
SELECT id, body, posted_on, author_id
FROM issue_comments
WHERE issue_id = ?
ORDER BY seq
`
	rows, err := q.QueryContext(ctx, r.dialect.Rebind(commentsQ), issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []issues.Comment{}
	for rows.Next() {
		var (
			c        issues.Comment
			posted   string
			authorID sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.Text, &posted, &authorID); err != nil {
			return nil, err
		}
		if c.PostedOn, err = parseTime(posted); err != nil {
			return nil, err
		}
		c.AuthorID = authorID.String
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *SQLRepo) loadActions(ctx context.Context, q querier, issueID string) ([]issues.Action, error) {
	const actionsQ = `
SELECT id, action_type, user_name, action_date, reason
FROM issue_actions
WHERE issue_id = ?
ORDER BY seq
`
	rows, err := q.QueryContext(ctx, r.dialect.Rebind(actionsQ), issueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []issues.Action{}
	for rows.Next() {
		var (
			a    issues.Action
			date string
		)
		if err := rows.Scan(&a.ID, &a.Type, &a.User, &date, &a.Reason); err != nil {
			return nil, err
		}
		if a.ActionDate, err = parseTime(date); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// LoadResolvedIssue loads the issue and resolves its references concurrently,
// at most resolveLimit lookups at a time.
func (r *SQLRepo) LoadResolvedIssue(ctx context.Context, id string) (issues.Issue, error) {
	i, err := r.LoadIssue(ctx, id)
	if err != nil {
		return issues.Issue{}, err
	}

	ids := map[string]struct{}{}
	for _, uid := range []string{i.OwnerID, i.AssigneeID} {
		if uid != "" {
			ids[uid] = struct{}{}
		}
	}
	for _, c := range i.Comments {
		if c.AuthorID != "" {
			ids[c.AuthorID] = struct{}{}
		}
	}

	var (
		mu    sync.Mutex
		users = make(map[string]issues.User, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.resolveLimit)
	for uid := range ids {
		g.Go(func() error {
			u, err := r.FindUser(gctx, uid)
			if errors.Is(err, issues.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			mu.Lock()
			users[uid] = u
			mu.Unlock()
			return nil
		})
	}
	if i.IssueTypeID != "" {
		g.Go(func() error {
			t, err := r.findIssueType(gctx, i.IssueTypeID)
			if errors.Is(err, issues.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			i.IssueType = &t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return issues.Issue{}, fmt.Errorf("resolve issue %q: %w", id, err)
	}

	ref := func(uid string) *issues.User {
		u, ok := users[uid]
		if !ok {
			return nil
		}
		return &u
	}
	i.Owner = ref(i.OwnerID)
	i.Assignee = ref(i.AssigneeID)
	for n := range i.Comments {
		i.Comments[n].Author = ref(i.Comments[n].AuthorID)
	}
	return i, nil
}

func (r *SQLRepo) FindUser(ctx context.Context, id string) (issues.User, error) {
	const q = `SELECT id, firstname, lastname, roles FROM users WHERE id = ?`
	var (
		u     issues.User
		roles string
	)
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(q), id).Scan(&u.ID, &u.Firstname, &u.Lastname, &roles); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issues.User{}, fmt.Errorf("user %q: %w", id, issues.ErrNotFound)
		}
		return issues.User{}, err
	}
	var err error
	if u.Roles, err = decodeStrings(roles); err != nil {
		return issues.User{}, fmt.Errorf("user %q roles: %w", id, err)
	}
	return u, nil
}

func (r *SQLRepo) findIssueType(ctx context.Context, id string) (issues.IssueType, error) {
	const q = `SELECT id, name FROM issue_types WHERE id = ?`
	var t issues.IssueType
	if err := r.db.QueryRowContext(ctx, r.dialect.Rebind(q), id).Scan(&t.ID, &t.Name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return issues.IssueType{}, fmt.Errorf("issue type %q: %w", id, issues.ErrNotFound)
		}
		return issues.IssueType{}, err
	}
	return t, nil
}

// SaveIssue persists the mutable columns of i and inserts the comments and
// actions appended since load. Stored rows are never updated or deleted.
func (r *SQLRepo) SaveIssue(ctx context.Context, i issues.Issue) error {
	tagsJSON, err := encodeStrings(i.Tags)
	if err != nil {
		return err
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const updateQ = `
UPDATE issues
SET state = ?, tags = ?, assignee_id = ?, updated_on = ?, version = version + 1
WHERE id = ? AND version = ?
`
		res, err := tx.ExecContext(ctx, r.dialect.Rebind(updateQ),
			string(i.State),
			tagsJSON,
			nullString(i.AssigneeID),
			formatTime(i.UpdatedOn),
			i.ID,
			i.Version,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			var one int
			err := tx.QueryRowContext(ctx, r.dialect.Rebind(`SELECT 1 FROM issues WHERE id = ?`), i.ID).Scan(&one)
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("issue %q: %w", i.ID, issues.ErrNotFound)
			}
			if err != nil {
				return err
			}
			return fmt.Errorf("issue %q changed since version %d: %w", i.ID, i.Version, issues.ErrConflict)
		}

		stored, err := r.count(ctx, tx, "issue_comments", i.ID)
		if err != nil {
			return err
		}
		if len(i.Comments) < stored {
			return fmt.Errorf("issue %q: comments are append-only: %w", i.ID, issues.ErrConflict)
		}
		for seq := stored; seq < len(i.Comments); seq++ {
			if err := r.insertComment(ctx, tx, i.ID, seq, i.Comments[seq]); err != nil {
				return err
			}
		}

		stored, err = r.count(ctx, tx, "issue_actions", i.ID)
		if err != nil {
			return err
		}
		if len(i.Actions) < stored {
			return fmt.Errorf("issue %q: actions are append-only: %w", i.ID, issues.ErrConflict)
		}
		for seq := stored; seq < len(i.Actions); seq++ {
			if err := r.insertAction(ctx, tx, i.ID, seq, i.Actions[seq]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SQLRepo) count(ctx context.Context, tx *sql.Tx, table, issueID string) (int, error) {
	var n int
	q := "SELECT COUNT(*) FROM " + table + " WHERE issue_id = ?"
	if err := tx.QueryRowContext(ctx, r.dialect.Rebind(q), issueID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLRepo) insertComment(ctx context.Context, tx *sql.Tx, issueID string, seq int, c issues.Comment) error {
	const q = `
INSERT INTO issue_comments (id, issue_id, seq, body, posted_on, author_id)
VALUES (?, ?, ?, ?, ?, ?)
`
	_, err := tx.ExecContext(ctx, r.dialect.Rebind(q),
		c.ID,
		issueID,
		seq,
		c.Text,
		formatTime(c.PostedOn),
		nullString(c.AuthorID),
	)
	return err
}

func (r *SQLRepo) insertAction(ctx context.Context, tx *sql.Tx, issueID string, seq int, a issues.Action) error {
	const q = `
INSERT INTO issue_actions (id, issue_id, seq, action_type, user_name, action_date, reason)
VALUES (?, ?, ?, ?, ?, ?, ?)
`
	_, err := tx.ExecContext(ctx, r.dialect.Rebind(q),
		a.ID,
		issueID,
		seq,
		a.Type,
		a.User,
		formatTime(a.ActionDate),
		a.Reason,
	)
	return err
}

// InsertUser writes reference data owned by the identity service.
func (r *SQLRepo) InsertUser(ctx context.Context, u issues.User) error {
	roles, err := encodeStrings(u.Roles)
	if err != nil {
		return err
	}
	const q = `INSERT INTO users (id, firstname, lastname, roles) VALUES (?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, r.dialect.Rebind(q), u.ID, u.Firstname, u.Lastname, roles)
	return err
}

func (r *SQLRepo) InsertIssueType(ctx context.Context, t issues.IssueType) error {
	const q = `INSERT INTO issue_types (id, name) VALUES (?, ?)`
	_, err := r.db.ExecContext(ctx, r.dialect.Rebind(q), t.ID, t.Name)
	return err
}

// InsertIssue creates an issue together with any comments and actions it
// already carries. Issue creation belongs to the reporting flow; this exists
// for seeding and tests.
func (r *SQLRepo) InsertIssue(ctx context.Context, i issues.Issue) error {
	tagsJSON, err := encodeStrings(i.Tags)
	if err != nil {
		return err
	}
	if i.State == "" {
		i.State = issues.StateNew
	}
	return utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
INSERT INTO issues (id, description, lat, lng, state, tags, issue_type_id, owner_id, assignee_id, created_on, updated_on, version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
		if _, err := tx.ExecContext(ctx, r.dialect.Rebind(q),
			i.ID,
			i.Description,
			i.Lat,
			i.Lng,
			string(i.State),
			tagsJSON,
			nullString(i.IssueTypeID),
			nullString(i.OwnerID),
			nullString(i.AssigneeID),
			formatTime(i.CreatedOn),
			formatTime(i.UpdatedOn),
			i.Version,
		); err != nil {
			return err
		}
		for seq, c := range i.Comments {
			if err := r.insertComment(ctx, tx, i.ID, seq, c); err != nil {
				return err
			}
		}
		for seq, a := range i.Actions {
			if err := r.insertAction(ctx, tx, i.ID, seq, a); err != nil {
				return err
			}
		}
		return nil
	})
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

func encodeStrings(v []string) (string, error) {
	if v == nil {
		v = []string{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeStrings(s string) ([]string, error) {
	out := []string{}
	if strings.TrimSpace(s) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, err
	}
	return out, nil
}
