package directory

import (
	"context"
	"testing"

	"go-workflow/internal/common/errs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockMemberRepo struct {
	members map[string]Member
}

func newMockMemberRepo(ms ...Member) *MockMemberRepo {
	m := &MockMemberRepo{members: map[string]Member{}}
	for _, x := range ms {
		m.members[x.UserID] = x
	}
	return m
}

func (m *MockMemberRepo) Lookup(ctx context.Context, id string) (*Member, error) {
	if x, ok := m.members[id]; ok {
		return &x, nil
	}
	return nil, errs.NotFound("member", id)
}

func (m *MockMemberRepo) MembersOf(ctx context.Context, role string) ([]Member, error) {
	var out []Member
	for _, x := range m.members {
		for _, r := range x.Roles {
			if r == role && x.IsActive {
				out = append(out, x)
			}
		}
	}
	return out, nil
}

func (m *MockMemberRepo) Upsert(ctx context.Context, x *Member) error {
	m.members[x.UserID] = *x
	return nil
}

func (m *MockMemberRepo) List(ctx context.Context) ([]Member, error) {
	var out []Member
	for _, x := range m.members {
		out = append(out, x)
	}
	return out, nil
}

func (m *MockMemberRepo) EnsureIndexes(ctx context.Context) error { return nil }

// readOnly hides the write methods of a repository.
type readOnly struct{ Directory }

func TestResolveActor(t *testing.T) {
	repo := newMockMemberRepo(
		Member{UserID: "u1", Username: "alice", Roles: []string{"R1", "R2"}, IsActive: true},
		Member{UserID: "u2", Username: "bob", Roles: []string{"R1"}, IsActive: false},
		Member{UserID: "root", IsSuperuser: true, IsActive: true},
	)
	svc := NewDirectoryService(repo, repo, zap.NewNop())
	ctx := context.Background()

	actor, err := svc.ResolveActor(ctx, "u1", "token-name")
	require.NoError(t, err)
	assert.Equal(t, "alice", actor.Username)
	assert.Equal(t, []string{"R1", "R2"}, actor.Roles)

	_, err = svc.ResolveActor(ctx, "u2", "")
	assert.True(t, errs.IsForbidden(err))

	actor, err = svc.ResolveActor(ctx, "stranger", "someone")
	require.NoError(t, err)
	assert.Empty(t, actor.Roles)
	assert.Equal(t, "someone", actor.Username)

	actor, err = svc.ResolveActor(ctx, "root", "")
	require.NoError(t, err)
	assert.True(t, actor.IsSuperuser)
}

func TestMembersOfDeduplicates(t *testing.T) {
	repo := newMockMemberRepo(
		Member{UserID: "u1", Roles: []string{"R1", "R2"}, IsActive: true},
		Member{UserID: "u2", Roles: []string{"R2"}, IsActive: true},
	)
	svc := NewDirectoryService(repo, repo, zap.NewNop())

	members, err := svc.MembersOf(context.Background(), []string{"R1", "R2"})
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestUsernamesSkipsUnknown(t *testing.T) {
	repo := newMockMemberRepo(Member{UserID: "u1", Username: "alice", IsActive: true})
	svc := NewDirectoryService(repo, repo, zap.NewNop())

	names, err := svc.Usernames(context.Background(), []string{"u1", "nobody"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"u1": "alice"}, names)
}

func TestExternalDirectoryIsReadOnly(t *testing.T) {
	repo := newMockMemberRepo()
	svc := NewDirectoryService(readOnly{repo}, repo, zap.NewNop())

	err := svc.UpsertMember(context.Background(), &Member{UserID: "u1"})
	assert.True(t, errs.IsValidation(err))
	_, err = svc.ListMembers(context.Background())
	assert.True(t, errs.IsValidation(err))

	writable := NewDirectoryService(repo, repo, zap.NewNop())
	assert.True(t, errs.IsValidation(writable.UpsertMember(context.Background(), &Member{})))
	require.NoError(t, writable.UpsertMember(context.Background(), &Member{UserID: "u1"}))
}
