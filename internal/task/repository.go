// AngelaMos | 2026
// repository.go

package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

// Filter narrows a scoped task query. Zero values mean "no constraint";
// a Limit of zero returns every matching row.
type Filter struct {
	Status     *Status
	NotStatus  *Status
	Priority   *Priority
	AssigneeID string
	CreatorID  string
	OverdueAt  *time.Time
	Limit      int
	Offset     int
}

type Repository interface {
	Insert(ctx context.Context, t *Task) error
	GetByID(ctx context.Context, id string) (*Task, error)
	// Mutate locks the row, lets fn change it and writes it back in the
	// same transaction. An error from fn rolls back with nothing written.
	Mutate(ctx context.Context, id string, fn func(t *Task) error) (*Task, error)
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, scope policy.Scope, f Filter) ([]Task, int, error)
	CountByStatus(ctx context.Context, scope policy.Scope) (map[Status]int, error)

	ListArchivable(ctx context.Context, cutoff time.Time, afterID string, limit int) ([]Task, error)
	Archive(ctx context.Context, id string, cutoff time.Time) (bool, error)
	ListDueBetween(ctx context.Context, from, to time.Time, afterID string, limit int) ([]Task, error)
	ListAssignedForExport(ctx context.Context, userID string) ([]ExportRow, error)
}

type repository struct {
	db core.TxBeginner
}

func NewRepository(db core.TxBeginner) Repository {
	return &repository{db: db}
}

const taskColumns = `id, title, description, status, priority, due_date, completed_at,
	creator_id, assignee_id, created_at, updated_at`

func (r *repository) Insert(ctx context.Context, t *Task) error {
	query := `
		INSERT INTO tasks (id, title, description, status, priority, due_date,
		                   completed_at, creator_id, assignee_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		t.ID,
		t.Title,
		t.Description,
		t.Status.Ordinal(),
		t.Priority.Ordinal(),
		t.DueDate,
		t.CompletedAt,
		t.CreatorID,
		t.AssigneeID,
	)
	if err := row.Scan(&t.CreatedAt, &t.UpdatedAt); err != nil {
		if core.IsForeignKeyViolation(err) {
			return fmt.Errorf("insert task: %w", core.ErrAssigneeNotFound)
		}
		return fmt.Errorf("insert task: %w", err)
	}

	return nil
}

func (r *repository) GetByID(ctx context.Context, id string) (*Task, error) {
	var row taskRow
	err := r.db.GetContext(ctx, &row, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get task: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}

	return row.toTask()
}

func (r *repository) Mutate(
	ctx context.Context,
	id string,
	fn func(t *Task) error,
) (*Task, error) {
	var out *Task

	err := core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		var row taskRow
		err := tx.GetContext(ctx, &row,
			`SELECT `+taskColumns+` FROM tasks WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("lock task: %w", core.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock task: %w", err)
		}

		t, err := row.toTask()
		if err != nil {
			return err
		}

		if err := fn(t); err != nil {
			return err
		}

		query := `
			UPDATE tasks
			SET title = $2, description = $3, status = $4, priority = $5,
			    due_date = $6, completed_at = $7, assignee_id = $8, updated_at = NOW()
			WHERE id = $1
			RETURNING updated_at`

		err = tx.GetContext(ctx, &t.UpdatedAt, query,
			t.ID,
			t.Title,
			t.Description,
			t.Status.Ordinal(),
			t.Priority.Ordinal(),
			t.DueDate,
			t.CompletedAt,
			t.AssigneeID,
		)
		if err != nil {
			if core.IsForeignKeyViolation(err) {
				return fmt.Errorf("update task: %w", core.ErrAssigneeNotFound)
			}
			return fmt.Errorf("update task: %w", err)
		}

		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

func (r *repository) Delete(ctx context.Context, id string) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM comments WHERE task_id = $1`, id); err != nil {
			return fmt.Errorf("delete task comments: %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("delete task: %w", core.ErrNotFound)
		}
		return nil
	})
}

type where struct {
	conds []string
	args  []any
}

// add appends a condition; %[1]d in cond is replaced by the placeholder
// index of arg.
func (w *where) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *where) raw(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) next() int {
	return len(w.args) + 1
}

func (w *where) String() string {
	if len(w.conds) == 0 {
		return "TRUE"
	}
	return strings.Join(w.conds, " AND ")
}

// applyScope constrains the query to what the scope can see. It always
// runs first so hidden rows never reach filtering or paging.
func (w *where) applyScope(s policy.Scope) {
	switch {
	case s.All:
	case s.UserID != "":
		w.add("(creator_id = $%[1]d OR assignee_id = $%[1]d)", s.UserID)
	default:
		w.raw("FALSE")
	}
}

func (w *where) applyFilter(f Filter) {
	if f.Status != nil {
		w.add("status = $%d", f.Status.Ordinal())
	}
	if f.NotStatus != nil {
		w.add("status <> $%d", f.NotStatus.Ordinal())
	}
	if f.Priority != nil {
		w.add("priority = $%d", f.Priority.Ordinal())
	}
	if f.AssigneeID != "" {
		w.add("assignee_id = $%d", f.AssigneeID)
	}
	if f.CreatorID != "" {
		w.add("creator_id = $%d", f.CreatorID)
	}
	if f.OverdueAt != nil {
		w.add("due_date < $%d", *f.OverdueAt)
		w.add("status <> $%d", StatusCompleted.Ordinal())
	}
}

func (r *repository) List(
	ctx context.Context,
	scope policy.Scope,
	f Filter,
) ([]Task, int, error) {
	w := &where{}
	w.applyScope(scope)
	w.applyFilter(f)

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM tasks WHERE "+w.String(), w.args...); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM tasks WHERE %s ORDER BY created_at DESC, id DESC`,
		taskColumns, w.String())
	args := w.args
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", w.next(), w.next()+1)
		args = append(args, f.Limit, f.Offset)
	}

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	tasks, err := rowsToTasks(rows)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}

	return tasks, total, nil
}

func (r *repository) CountByStatus(ctx context.Context, scope policy.Scope) (map[Status]int, error) {
	w := &where{}
	w.applyScope(scope)

	var rows []struct {
		Status int `db:"status"`
		Count  int `db:"count"`
	}
	query := "SELECT status, COUNT(*) AS count FROM tasks WHERE " + w.String() + " GROUP BY status"
	if err := r.db.SelectContext(ctx, &rows, query, w.args...); err != nil {
		return nil, fmt.Errorf("count tasks by status: %w", err)
	}

	out := make(map[Status]int, len(Statuses))
	for _, row := range rows {
		s, err := StatusFromOrdinal(row.Status)
		if err != nil {
			return nil, fmt.Errorf("count tasks by status: %w", err)
		}
		out[s] = row.Count
	}

	return out, nil
}

func keysetStart(afterID string) string {
	if afterID == "" {
		return uuid.Nil.String()
	}
	return afterID
}

func (r *repository) ListArchivable(
	ctx context.Context,
	cutoff time.Time,
	afterID string,
	limit int,
) ([]Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = $1 AND completed_at < $2 AND id > $3
		ORDER BY id
		LIMIT $4`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query,
		StatusCompleted.Ordinal(), cutoff, keysetStart(afterID), limit,
	); err != nil {
		return nil, fmt.Errorf("list archivable tasks: %w", err)
	}

	return rowsToTasks(rows)
}

// Archive moves a completed task to archived if it still qualifies.
// completed_at is left as it was.
func (r *repository) Archive(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND completed_at < $4`,
		id, StatusArchived.Ordinal(), StatusCompleted.Ordinal(), cutoff,
	)
	if err != nil {
		return false, fmt.Errorf("archive task: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("archive task: %w", err)
	}

	return n == 1, nil
}

func (r *repository) ListDueBetween(
	ctx context.Context,
	from, to time.Time,
	afterID string,
	limit int,
) ([]Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE due_date BETWEEN $1 AND $2
		  AND status <> $3
		  AND assignee_id IS NOT NULL
		  AND id > $4
		ORDER BY id
		LIMIT $5`

	var rows []taskRow
	if err := r.db.SelectContext(ctx, &rows, query,
		from, to, StatusCompleted.Ordinal(), keysetStart(afterID), limit,
	); err != nil {
		return nil, fmt.Errorf("list tasks due: %w", err)
	}

	return rowsToTasks(rows)
}

func (r *repository) ListAssignedForExport(ctx context.Context, userID string) ([]ExportRow, error) {
	query := `
		SELECT t.title, t.description, t.status, t.priority, t.due_date, t.created_at,
		       TRIM(c.first_name || ' ' || c.last_name) AS creator_name,
		       COALESCE(TRIM(a.first_name || ' ' || a.last_name), '') AS assignee_name
		FROM tasks t
		JOIN users c ON c.id = t.creator_id
		LEFT JOIN users a ON a.id = t.assignee_id
		WHERE t.assignee_id = $1
		ORDER BY t.created_at DESC, t.id DESC`

	var rows []ExportRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list tasks for export: %w", err)
	}

	return rows, nil
}
