// AngelaMos | 2026
// entity.go

package comment

import (
	"strings"
	"time"

	"github.com/carterperez-dev/taskmanager/internal/core"
	"github.com/carterperez-dev/taskmanager/internal/policy"
)

const maxContentLength = 10000

type Comment struct {
	ID         string    `db:"id"`
	Content    string    `db:"content"`
	TaskID     string    `db:"task_id"`
	AuthorID   string    `db:"user_id"`
	AuthorName string    `db:"author_name"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (c *Comment) Subject(taskCreatorID string) *policy.Subject {
	return policy.Comment(c.AuthorID, taskCreatorID)
}

func (c *Comment) validate() error {
	v := core.NewValidationError(core.ErrInvalidInput)

	switch content := strings.TrimSpace(c.Content); {
	case content == "":
		v.Add("content", "can't be blank")
	case len(content) > maxContentLength:
		v.Add("content", "is too long")
	}

	return v.OrNil()
}
