// AngelaMos | 2026
// policy_test.go

package policy

import "testing"

func strPtr(s string) *string { return &s }

var (
	admin   = &Actor{ID: "admin-1", Role: RoleAdmin}
	manager = &Actor{ID: "manager-1", Role: RoleManager}
	member  = &Actor{ID: "member-1", Role: RoleMember}
)

func TestAuthorizeTaskTable(t *testing.T) {
	own := Task(member.ID, nil)
	assigned := Task("someone", strPtr(member.ID))
	foreign := Task("someone", strPtr("other"))

	cases := []struct {
		name    string
		actor   *Actor
		action  Action
		subject *Subject
		want    bool
	}{
		{"member creates", member, TaskCreate, nil, true},
		{"member lists", member, TaskList, nil, true},
		{"member views own", member, TaskView, own, true},
		{"member views assigned", member, TaskView, assigned, true},
		{"member views foreign", member, TaskView, foreign, false},
		{"manager views foreign", manager, TaskView, foreign, true},
		{"member updates own", member, TaskUpdate, own, true},
		{"member updates assigned", member, TaskUpdate, assigned, false},
		{"manager updates any", manager, TaskUpdate, foreign, true},
		{"admin deletes", admin, TaskDelete, foreign, true},
		{"manager deletes", manager, TaskDelete, foreign, false},
		{"member deletes own", member, TaskDelete, own, false},
		{"manager assigns", manager, TaskAssign, foreign, true},
		{"member assigns own", member, TaskAssign, own, false},
		{"member completes assigned", member, TaskComplete, assigned, true},
		{"member completes own", member, TaskComplete, own, true},
		{"member completes foreign", member, TaskComplete, foreign, false},
		{"admin completes any", admin, TaskComplete, foreign, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.actor, tc.action, tc.subject); got != tc.want {
				t.Fatalf("Authorize(%s, %s) = %v, want %v", tc.actor.Role, tc.action, got, tc.want)
			}
		})
	}
}

func TestAuthorizeUserTable(t *testing.T) {
	cases := []struct {
		name    string
		actor   *Actor
		action  Action
		subject *Subject
		want    bool
	}{
		{"admin lists", admin, UserList, nil, true},
		{"manager lists", manager, UserList, nil, true},
		{"member lists", member, UserList, nil, false},
		{"member views self", member, UserView, User(member.ID), true},
		{"member views other", member, UserView, User("x"), false},
		{"manager views other", manager, UserView, User("x"), true},
		{"admin creates", admin, UserCreate, nil, true},
		{"manager creates", manager, UserCreate, nil, false},
		{"manager updates self", manager, UserUpdate, User(manager.ID), true},
		{"manager updates other", manager, UserUpdate, User("x"), false},
		{"admin updates other", admin, UserUpdate, User("x"), true},
		{"admin deletes other", admin, UserDelete, User("x"), true},
		{"admin deletes self", admin, UserDelete, User(admin.ID), false},
		{"manager deletes other", manager, UserDelete, User("x"), false},
		{"member changes own role", member, UserChangeRole, User(member.ID), false},
		{"admin changes role", admin, UserChangeRole, User("x"), true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Authorize(tc.actor, tc.action, tc.subject); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAuthorizeCommentDelete(t *testing.T) {
	c := Comment("author", "task-creator")

	if !Authorize(&Actor{ID: "author", Role: RoleMember}, CommentDelete, c) {
		t.Errorf("author should delete own comment")
	}
	if !Authorize(&Actor{ID: "task-creator", Role: RoleMember}, CommentDelete, c) {
		t.Errorf("task creator should delete comments on their task")
	}
	if Authorize(&Actor{ID: "bystander", Role: RoleManager}, CommentDelete, c) {
		t.Errorf("unrelated manager should not delete comment")
	}
	if !Authorize(admin, CommentDelete, c) {
		t.Errorf("admin should delete any comment")
	}
}

func TestAuthorizeFailsClosed(t *testing.T) {
	for _, action := range []Action{TaskView, TaskUpdate, TaskAssign, TaskComplete, TaskDelete} {
		if Authorize(admin, action, nil) {
			t.Errorf("%s with nil subject allowed", action)
		}
	}

	if Authorize(nil, TaskCreate, nil) {
		t.Errorf("nil actor allowed")
	}
	if Authorize(&Actor{ID: "x", Role: "intern"}, TaskCreate, nil) {
		t.Errorf("unknown role allowed")
	}
	if Authorize(admin, Action("task:teleport"), Task("x", nil)) {
		t.Errorf("unknown action allowed")
	}
	if Authorize(admin, TaskView, User("x")) {
		t.Errorf("subject of wrong kind allowed")
	}
}

func TestVisibleScope(t *testing.T) {
	if s := VisibleScope(admin); !s.All {
		t.Errorf("admin scope = %+v", s)
	}
	if s := VisibleScope(manager); !s.All {
		t.Errorf("manager scope = %+v", s)
	}

	s := VisibleScope(member)
	if s.All || s.UserID != member.ID {
		t.Fatalf("member scope = %+v", s)
	}

	rows := []struct {
		creator  string
		assignee *string
		want     bool
	}{
		{member.ID, nil, true},
		{"other", strPtr(member.ID), true},
		{"other", strPtr("third"), false},
		{"other", nil, false},
	}
	for _, r := range rows {
		if got := s.Includes(r.creator, r.assignee); got != r.want {
			t.Errorf("Includes(%s, %v) = %v, want %v", r.creator, r.assignee, got, r.want)
		}
	}

	if !VisibleScope(nil).None() {
		t.Errorf("nil actor must see nothing")
	}
	if !VisibleScope(&Actor{ID: "x", Role: "ghost"}).None() {
		t.Errorf("unknown role must see nothing")
	}
}

func TestRoleOrdering(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleManager) || RoleMember.AtLeast(RoleManager) {
		t.Fatalf("unexpected rank ordering")
	}

	for i, want := range []Role{RoleMember, RoleManager, RoleAdmin} {
		got, err := RoleFromOrdinal(i)
		if err != nil || got != want || want.Ordinal() != i {
			t.Fatalf("ordinal %d: got %q err %v", i, got, err)
		}
	}
	if _, err := RoleFromOrdinal(3); err == nil {
		t.Fatalf("expected error for ordinal 3")
	}
	if _, err := ParseRole("owner"); err == nil {
		t.Fatalf("expected error for unknown role")
	}
}
