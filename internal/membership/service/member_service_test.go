package service

import (
	"context"
	"errors"
	"testing"

	"tenantdesk/backend/internal/authz"
	identitydomain "tenantdesk/backend/internal/identity/domain"
	invitationdomain "tenantdesk/backend/internal/invitation/domain"
	"tenantdesk/backend/internal/membership/domain"
	"tenantdesk/backend/internal/platform/apperr"
	"tenantdesk/backend/internal/security"
	"tenantdesk/backend/internal/tenancy"
	userdomain "tenantdesk/backend/internal/user/domain"
)

type fakeTx struct{ calls int }

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.calls++
	return fn(ctx)
}

type mockMembers struct {
	byID   map[int64]*domain.Member
	nextID int64
}

func (m *mockMembers) GetByID(_ context.Context, id int64) (*domain.Member, error) {
	mem := m.byID[id]
	if mem == nil {
		return nil, nil
	}
	cp := *mem
	if mem.User != nil {
		u := *mem.User
		cp.User = &u
	}
	return &cp, nil
}

func (m *mockMembers) List(_ context.Context, f domain.Filter) ([]*domain.Member, error) {
	var out []*domain.Member
	for _, mem := range m.byID {
		if mem.OrgID == f.OrgID && (mem.IsActive || f.IncludeInactive) {
			out = append(out, mem)
		}
	}
	return out, nil
}

func (m *mockMembers) Create(_ context.Context, mem *domain.Member) error {
	for _, other := range m.byID {
		if other.UserID == mem.UserID && other.OrgID == mem.OrgID {
			return errors.New("unexpected duplicate")
		}
	}
	mem.ID = m.nextID
	m.nextID++
	mem.IsActive = true
	cp := *mem
	m.byID[mem.ID] = &cp
	return nil
}

func (m *mockMembers) Update(_ context.Context, mem *domain.Member) error {
	m.byID[mem.ID].Nickname = mem.Nickname
	return nil
}

func (m *mockMembers) UpdateRole(_ context.Context, id int64, role domain.Role, _ *int64) error {
	m.byID[id].Role = role
	return nil
}

func (m *mockMembers) Deactivate(_ context.Context, id int64, _ *int64) error {
	m.byID[id].IsActive = false
	return nil
}

type mockUsers struct {
	byID      map[int64]*userdomain.User
	nextID    int64
	passwords map[int64]string
}

func (m *mockUsers) GetByUsername(_ context.Context, username string) (*userdomain.User, error) {
	for _, u := range m.byID {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockUsers) Create(_ context.Context, u *userdomain.User) error {
	u.ID = m.nextID
	m.nextID++
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockUsers) Update(_ context.Context, u *userdomain.User) error {
	cp := *u
	m.byID[u.ID] = &cp
	return nil
}

func (m *mockUsers) SetPassword(_ context.Context, id int64, hash string) error {
	m.passwords[id] = hash
	return nil
}

func (m *mockUsers) MarkSelfCreated(_ context.Context, id int64) error {
	m.byID[id].CreatedBy = &id
	return nil
}

type mockInvitations struct {
	inv       *invitationdomain.Invitation
	checkErr  error
	acceptErr error
	accepted  []int64
}

func (m *mockInvitations) GetOpen(_ context.Context, key string) (*invitationdomain.Invitation, error) {
	if m.inv == nil || m.inv.Key != key || m.inv.IsAccepted {
		return nil, apperr.NotFound("Invitation not found or expired.")
	}
	cp := *m.inv
	return &cp, nil
}

func (m *mockInvitations) CheckAcceptable(context.Context, *invitationdomain.Invitation) error {
	return m.checkErr
}

func (m *mockInvitations) Accept(_ context.Context, inv *invitationdomain.Invitation, memberID int64, check bool) error {
	if check {
		return errors.New("acceptance must not re-check")
	}
	if m.acceptErr != nil {
		return m.acceptErr
	}
	m.accepted = append(m.accepted, memberID)
	m.inv.IsAccepted = true
	m.inv.MemberID = &memberID
	return nil
}

type stubIssuer struct{ issued []int64 }

func (s *stubIssuer) Issue(_ context.Context, u *userdomain.User, _ string) (*identitydomain.TokenResult, error) {
	s.issued = append(s.issued, u.ID)
	return &identitydomain.TokenResult{TokenPair: identitydomain.TokenPair{Access: "a", Refresh: "r"}, User: u.Summary()}, nil
}

type fixture struct {
	svc     *MemberService
	members *mockMembers
	users   *mockUsers
	invites *mockInvitations
	issuer  *stubIssuer
	tx      *fakeTx
}

// newFixture seeds organization 1 with owner 10 (user 1), admin 11 (user 2), manager 12 (user 3)
// and member 13 (user 4).
func newFixture() *fixture {
	f := &fixture{
		members: &mockMembers{byID: map[int64]*domain.Member{}, nextID: 100},
		users:   &mockUsers{byID: map[int64]*userdomain.User{}, nextID: 50, passwords: map[int64]string{}},
		invites: &mockInvitations{},
		issuer:  &stubIssuer{},
		tx:      &fakeTx{},
	}
	roles := []domain.Role{domain.RoleOwner, domain.RoleAdmin, domain.RoleManager, domain.RoleMember}
	for i, role := range roles {
		u := &userdomain.User{ID: int64(i + 1), Username: string(role) + "-user", Email: string(role) + "@x.com", IsActive: true}
		f.users.byID[u.ID] = u
		f.members.byID[int64(10+i)] = &domain.Member{ID: int64(10 + i), UserID: u.ID, OrgID: 1, Role: role, IsActive: true, User: u}
	}
	f.svc = NewMemberService(f.tx, f.members, f.users, f.invites, f.issuer, security.NewPasswordHasher(4), authz.NewEngine(nil, nil))
	return f
}

func (f *fixture) as(memberID int64) *tenancy.Context {
	m := f.members.byID[memberID]
	return &tenancy.Context{User: m.User, OrgID: m.OrgID, Member: m}
}

func str(s string) *string { return &s }

func TestMemberService_CreateIsRetired(t *testing.T) {
	f := newFixture()
	err := f.svc.Create(context.Background(), f.as(10))
	var de *apperr.DetailError
	if !errors.As(err, &de) || !errors.Is(err, apperr.ErrMethodNotAllowed) || de.Detail != DeprecatedCreateMessage {
		t.Errorf("err = %v", err)
	}
}

func TestMemberService_UpdateRole(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	testCases := []struct {
		name   string
		caller int64
		target int64
		role   string
		want   string // "", "forbidden", "invalid"
	}{
		{"owner changes own role", 10, 10, "member", "invalid"},
		{"admin changes own role", 11, 11, "owner", "invalid"},
		{"admin sets manager to admin", 11, 12, "admin", ""},
		{"admin sets member to owner", 11, 13, "owner", "invalid"},
		{"admin demotes owner", 11, 10, "member", "forbidden"},
		{"manager sets member to admin", 12, 13, "admin", "forbidden"},
		{"manager sets member to owner", 12, 13, "owner", "forbidden"},
		{"owner sets member to owner", 10, 13, "owner", ""},
		{"bad role", 10, 12, "boss", "invalid"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			m, err := f.svc.UpdateRole(ctx, f.as(tc.caller), tc.target, tc.role)
			switch tc.want {
			case "":
				if err != nil {
					t.Fatalf("UpdateRole: %v", err)
				}
				if string(m.Role) != tc.role || string(f.members.byID[tc.target].Role) != tc.role {
					t.Errorf("role not stored: %+v", m)
				}
			case "forbidden":
				if !errors.Is(err, apperr.ErrForbidden) {
					t.Errorf("err = %v, want forbidden", err)
				}
			case "invalid":
				if _, ok := apperr.AsValidation(err); !ok {
					t.Errorf("err = %v, want validation", err)
				}
			}
		})
	}

	f.members.byID[20] = &domain.Member{ID: 20, UserID: 9, OrgID: 2, Role: domain.RoleMember, IsActive: true}
	if _, err := f.svc.UpdateRole(ctx, f.as(10), 20, "admin"); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("cross-tenant err = %v", err)
	}
}

func TestMemberService_Update(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Update(ctx, f.as(10), 13, UpdateInput{Nickname: str("x")}); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("owner editing another member err = %v", err)
	}

	m, err := f.svc.Update(ctx, f.as(13), 13, UpdateInput{
		Nickname: str("dev"),
		User:     &UserInput{FirstName: str("Dee"), Password: str("new-pass")},
	})
	if err != nil {
		t.Fatalf("self update: %v", err)
	}
	if m.Nickname != "dev" || f.users.byID[4].FirstName != "Dee" || f.users.byID[4].Username != "member-user" {
		t.Errorf("member = %+v user = %+v", m, f.users.byID[4])
	}
	if f.users.passwords[4] == "" {
		t.Error("password not stored")
	}

	_, err = f.svc.Update(ctx, f.as(13), 13, UpdateInput{User: &UserInput{Password: str("")}})
	if ve, ok := apperr.AsValidation(err); !ok || ve.Message != "Password cannot be empty." {
		t.Errorf("empty password err = %v", err)
	}
}

func TestMemberService_Delete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	if err := f.svc.Delete(ctx, f.as(12), 13); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("manager delete err = %v", err)
	}
	if err := f.svc.Delete(ctx, f.as(11), 13); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, f.as(11), 13); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("deleted member still visible: %v", err)
	}
	list, _ := f.svc.List(ctx, f.as(11), domain.Filter{IncludeInactive: true})
	if len(list) != 3 {
		t.Errorf("list should exclude inactive members, got %d", len(list))
	}
}

func TestMemberService_CreateWithInvite(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.invites.inv = &invitationdomain.Invitation{ID: 1, OrgID: 1, Email: "bob@x.com", Role: domain.RoleMember, Key: "k1", IsActive: true}
	in := InviteInput{User: userdomain.User{Username: "bob", Email: "bob@x.com"}, Password: "pw"}

	res, err := f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", in, "")
	if err != nil {
		t.Fatalf("CreateWithInvite: %v", err)
	}
	m := res.Member
	if m.OrgID != 1 || m.Role != domain.RoleMember || m.User.Username != "bob" || m.CreatedBy == nil || *m.CreatedBy != m.UserID {
		t.Fatalf("member = %+v", m)
	}
	if len(f.invites.accepted) != 1 || f.invites.accepted[0] != m.ID || f.tx.calls != 1 {
		t.Errorf("accepted = %v tx = %d", f.invites.accepted, f.tx.calls)
	}
	if res.Tokens.Access == "" || len(f.issuer.issued) != 1 {
		t.Error("new member should be logged in")
	}

	// The same key is no longer open.
	_, err = f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", in, "")
	var de *apperr.DetailError
	if !errors.As(err, &de) || de.Detail != "Invitation not found or expired." {
		t.Errorf("repeat err = %v", err)
	}
}

func TestMemberService_CreateWithInviteFailures(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	f.invites.inv = &invitationdomain.Invitation{ID: 1, OrgID: 1, Role: domain.RoleMember, Key: "k1"}
	f.invites.checkErr = invitationdomain.ErrExpired
	_, err := f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", InviteInput{User: userdomain.User{Username: "bob"}, Password: "pw"}, "")
	var de *apperr.DetailError
	if !errors.Is(err, apperr.ErrBadRequest) || !errors.As(err, &de) || de.Detail != invitationdomain.ErrExpired.Error() {
		t.Errorf("expired err = %v, want bad request with the acceptance message", err)
	}

	f = newFixture()
	f.invites.inv = &invitationdomain.Invitation{ID: 1, OrgID: 1, Role: domain.RoleMember, Key: "k1"}
	_, err = f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", InviteInput{User: userdomain.User{Username: "member-user"}, Password: "pw"}, "")
	if ve, ok := apperr.AsValidation(err); !ok || ve.Message != "User with this username already exists." {
		t.Errorf("taken username err = %v", err)
	}
	_, err = f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", InviteInput{User: userdomain.User{Username: "carol"}}, "")
	if ve, ok := apperr.AsValidation(err); !ok || ve.Field != "password" {
		t.Errorf("missing password err = %v", err)
	}

	// A lost acceptance race rolls back and reports the invitation as gone.
	f.invites.acceptErr = invitationdomain.ErrAlreadyAccepted
	_, err = f.svc.CreateWithInvite(ctx, &tenancy.Context{}, "k1", InviteInput{User: userdomain.User{Username: "carol"}, Password: "pw"}, "")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("race err = %v", err)
	}
}

func TestMemberService_CreateWithInviteExistingCaller(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	outsider := &userdomain.User{ID: 60, Username: "dave", Email: "dave@x.com", IsActive: true}
	f.users.byID[60] = outsider
	f.invites.inv = &invitationdomain.Invitation{ID: 1, OrgID: 1, Role: domain.RoleManager, Key: "k1"}

	res, err := f.svc.CreateWithInvite(ctx, &tenancy.Context{User: outsider}, "k1", InviteInput{User: userdomain.User{Username: "dave"}}, "")
	if err != nil {
		t.Fatalf("CreateWithInvite: %v", err)
	}
	if res.Member.UserID != 60 || res.Member.Role != domain.RoleManager || len(f.users.byID) != 5 {
		t.Errorf("member = %+v users = %d", res.Member, len(f.users.byID))
	}
}
