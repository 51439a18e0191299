package repository

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kustii/board/models"
)

func ids(nodes []models.CommentNode) []string {
	out := []string{}
	for _, n := range nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestForumScenario(t *testing.T) {
	f := newFixture(t)

	p, err := f.posts.Create(ctxBg, forum, PostInput{Title: "T1", Content: "C1"}, admin)
	require.NoError(t, err)

	got, err := f.posts.GetDetail(ctxBg, forum, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, got.Views)

	c := f.comment(t, forum, p.ID, "hello", "", user)
	assert.False(t, c.IsAdmin)
	assert.Equal(t, "kim", c.User)

	list, err := f.comments.ListComments(ctxBg, forum, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, c.ID, list[0].ID)
	assert.Equal(t, "hello", list[0].Content)
	assert.False(t, list[0].IsAdmin)

	require.NoError(t, f.comments.DeleteComment(ctxBg, forum, p.ID, c.ID, admin))

	list, err = f.comments.ListComments(ctxBg, forum, p.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
	var n int64
	require.NoError(t, f.db.Model(&models.Comment{}).Where("id = ?", c.ID).Count(&n).Error)
	assert.Zero(t, n)
}

func TestAddCommentIsAdminFollowsRole(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, news, "n")

	assert.True(t, f.comment(t, news, p.ID, "from admin", "", admin).IsAdmin)
	assert.True(t, f.comment(t, news, p.ID, "from root", "", superadmin).IsAdmin)
	assert.False(t, f.comment(t, news, p.ID, "from user", "", user).IsAdmin)

	list, err := f.comments.ListComments(ctxBg, news, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"from admin", "from root", "from user"},
		[]string{list[0].Content, list[1].Content, list[2].Content})
}

func TestAddCommentErrors(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, forum, "p")
	other := f.createPost(t, forum, "other")
	foreign := f.comment(t, forum, other.ID, "elsewhere", "", user)

	_, err := f.comments.AddComment(ctxBg, forum, uuid.NewString(), CommentInput{Content: "x"}, user)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "post not found", err.Error())

	_, err = f.comments.AddComment(ctxBg, forum, p.ID, CommentInput{Content: "x", ParentID: uuid.NewString()}, user)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "parent comment not found", err.Error())

	_, err = f.comments.AddComment(ctxBg, forum, p.ID, CommentInput{Content: "x", ParentID: foreign.ID}, user)
	assert.ErrorIs(t, err, ErrNotFound, "parents are scoped to the post")

	_, err = f.comments.AddComment(ctxBg, media, p.ID, CommentInput{Content: "x"}, user)
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = f.comments.AddComment(ctxBg, news, p.ID, CommentInput{Content: "x"}, user)
	assert.ErrorIs(t, err, ErrNotFound, "post lives on another board")

	_, err = f.comments.AddComment(ctxBg, forum, p.ID, CommentInput{Content: "  "}, user)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.comments.ListComments(ctxBg, forum, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepliesAreVisibleInRecordAndMirror(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, forum, "threads")
	root := f.comment(t, forum, p.ID, "root", "", user)
	reply := f.comment(t, forum, p.ID, "reply", root.ID, admin)
	nested := f.comment(t, forum, p.ID, "nested", reply.ID, user)
	second := f.comment(t, forum, p.ID, "second reply", root.ID, user)

	assert.True(t, reply.IsAdmin)
	assert.NotEqual(t, reply.ID, nested.ID)

	rec := f.record(t, root.ID)
	require.Equal(t, []string{reply.ID, second.ID}, ids(rec.Replies))
	assert.Equal(t, []string{nested.ID}, ids(rec.Replies[0].Replies))
	assert.Equal(t, "nested", rec.Replies[0].Replies[0].Content)

	list, err := f.comments.ListComments(ctxBg, forum, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.TreeSignature([]models.CommentNode{rec.Node()}), models.TreeSignature(list))

	var count int64
	require.NoError(t, f.db.Model(&models.Comment{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "replies never become records")
}

func TestDeleteReplyRemovesSubtree(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, forum, "threads")
	root := f.comment(t, forum, p.ID, "root", "", user)
	reply := f.comment(t, forum, p.ID, "reply", root.ID, user)
	f.comment(t, forum, p.ID, "nested", reply.ID, user)
	keep := f.comment(t, forum, p.ID, "keep", root.ID, user)

	require.NoError(t, f.comments.DeleteComment(ctxBg, forum, p.ID, reply.ID, admin))

	rec := f.record(t, root.ID)
	assert.Equal(t, []string{keep.ID}, ids(rec.Replies))

	list, err := f.comments.ListComments(ctxBg, forum, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, []string{keep.ID}, ids(list[0].Replies))

	err = f.comments.DeleteComment(ctxBg, forum, p.ID, reply.ID, admin)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "comment not found", err.Error())
}

func TestDeleteCommentPermissionMatrix(t *testing.T) {
	for _, tc := range []struct {
		actor   Actor
		allowed bool
	}{
		{user, false},
		{admin, true},
		{superadmin, true},
	} {
		t.Run(string(tc.actor.Role), func(t *testing.T) {
			f := newFixture(t)
			p := f.createPost(t, forum, "p")
			c := f.comment(t, forum, p.ID, "c", "", user)

			err := f.comments.DeleteComment(ctxBg, forum, p.ID, c.ID, tc.actor)
			if tc.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrPermissionDenied)
			}
		})
	}
}

func TestDeleteCommentNotFound(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, forum, "p")
	other := f.createPost(t, forum, "other")
	c := f.comment(t, forum, other.ID, "c", "", user)

	assert.ErrorIs(t, f.comments.DeleteComment(ctxBg, forum, uuid.NewString(), c.ID, admin), ErrNotFound)
	assert.ErrorIs(t, f.comments.DeleteComment(ctxBg, forum, p.ID, c.ID, admin), ErrNotFound)
	assert.ErrorIs(t, f.comments.DeleteComment(ctxBg, forum, p.ID, "garbage", admin), ErrNotFound)

	list, err := f.comments.ListComments(ctxBg, forum, other.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1, "a miss on one post leaves the other untouched")
}

func TestConcurrentCommentsKeepMirrorConsistent(t *testing.T) {
	f := newFixture(t)
	p := f.createPost(t, forum, "busy")
	root := f.comment(t, forum, p.ID, "root", "", user)

	const workers = 16
	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := f.comments.AddComment(ctxBg, forum, p.ID, CommentInput{Content: fmt.Sprintf("top %d", i)}, user)
			errs <- err
		}(i)
		go func(i int) {
			defer wg.Done()
			_, err := f.comments.AddComment(ctxBg, forum, p.ID, CommentInput{Content: fmt.Sprintf("reply %d", i), ParentID: root.ID}, user)
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var records []models.Comment
	require.NoError(t, f.db.Where("post_id = ?", p.ID).Order("id ASC").Find(&records).Error)
	require.Len(t, records, workers+1)

	want := make([]models.CommentNode, 0, len(records))
	for i := range records {
		want = append(want, records[i].Node())
	}
	list, err := f.comments.ListComments(ctxBg, forum, p.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TreeSignature(want), models.TreeSignature(list), "embedded order follows id order")
	assert.Len(t, f.record(t, root.ID).Replies, workers)
}
