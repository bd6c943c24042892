// AngelaMos | 2026
// policy.go

// Package policy decides what an actor may do. It has no dependencies on
// storage or transport: every decision is a lookup in a static table.
package policy

type Action string

const (
	TaskList     Action = "task:list"
	TaskView     Action = "task:view"
	TaskCreate   Action = "task:create"
	TaskUpdate   Action = "task:update"
	TaskDelete   Action = "task:delete"
	TaskAssign   Action = "task:assign"
	TaskComplete Action = "task:complete"
	TaskExport   Action = "task:export"

	UserList       Action = "user:list"
	UserView       Action = "user:view"
	UserCreate     Action = "user:create"
	UserUpdate     Action = "user:update"
	UserChangeRole Action = "user:change_role"
	UserDelete     Action = "user:delete"

	CommentCreate Action = "comment:create"
	CommentDelete Action = "comment:delete"
)

type Kind string

const (
	KindTask    Kind = "task"
	KindUser    Kind = "user"
	KindComment Kind = "comment"
)

// Subject is the resource an action targets, reduced to the identities the
// rules look at.
type Subject struct {
	Kind Kind
	// OwnerID is the task creator, the user itself, or the comment author.
	OwnerID    string
	AssigneeID string
	// ParentOwnerID is the creator of the task a comment belongs to.
	ParentOwnerID string
}

func Task(creatorID string, assigneeID *string) *Subject {
	s := &Subject{Kind: KindTask, OwnerID: creatorID}
	if assigneeID != nil {
		s.AssigneeID = *assigneeID
	}
	return s
}

func User(id string) *Subject {
	return &Subject{Kind: KindUser, OwnerID: id}
}

func Comment(authorID, taskCreatorID string) *Subject {
	return &Subject{Kind: KindComment, OwnerID: authorID, ParentOwnerID: taskCreatorID}
}

type condition int

const (
	never condition = iota
	always
	// owner: actor is the subject's owner.
	owner
	// participant: actor created or is assigned the task.
	participant
	// notOwner: any subject except the actor itself.
	notOwner
	// moderator: actor wrote the comment or created its task.
	moderator
)

type rule struct {
	kind    Kind
	subject bool
	roles   map[Role]condition
}

var rules = map[Action]rule{
	TaskList: {kind: KindTask, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: always,
	}},
	TaskCreate: {kind: KindTask, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: always,
	}},
	TaskView: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: participant,
	}},
	TaskExport: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: participant,
	}},
	TaskUpdate: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: owner,
	}},
	TaskDelete: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always,
	}},
	TaskAssign: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always,
	}},
	TaskComplete: {kind: KindTask, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: participant,
	}},

	UserList: {kind: KindUser, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always,
	}},
	UserCreate: {kind: KindUser, roles: map[Role]condition{
		RoleAdmin: always,
	}},
	UserView: {kind: KindUser, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: owner,
	}},
	UserUpdate: {kind: KindUser, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: owner, RoleMember: owner,
	}},
	UserChangeRole: {kind: KindUser, subject: true, roles: map[Role]condition{
		RoleAdmin: notOwner,
	}},
	UserDelete: {kind: KindUser, subject: true, roles: map[Role]condition{
		RoleAdmin: notOwner,
	}},

	CommentCreate: {kind: KindComment, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: always, RoleMember: always,
	}},
	CommentDelete: {kind: KindComment, subject: true, roles: map[Role]condition{
		RoleAdmin: always, RoleManager: moderator, RoleMember: moderator,
	}},
}

// Authorize reports whether actor may perform action on subject. It fails
// closed: a nil actor, an unknown action or role, a missing subject where
// one is required and a subject of the wrong kind all deny.
func Authorize(actor *Actor, action Action, subject *Subject) bool {
	if actor == nil || actor.ID == "" {
		return false
	}

	r, ok := rules[action]
	if !ok {
		return false
	}

	if subject != nil && subject.Kind != r.kind {
		return false
	}
	if r.subject && subject == nil {
		return false
	}

	cond, ok := r.roles[actor.Role]
	if !ok {
		return false
	}

	return cond.holds(actor, subject)
}

func (c condition) holds(actor *Actor, s *Subject) bool {
	switch c {
	case always:
		return true
	case owner:
		return s != nil && s.OwnerID == actor.ID
	case participant:
		return s != nil && (s.OwnerID == actor.ID || s.AssigneeID == actor.ID)
	case notOwner:
		return s != nil && s.OwnerID != actor.ID
	case moderator:
		return s != nil && (s.OwnerID == actor.ID || s.ParentOwnerID == actor.ID)
	default:
		return false
	}
}
