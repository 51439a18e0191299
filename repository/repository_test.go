package repository

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kustii/board/auth"
	"github.com/kustii/board/boards"
	"github.com/kustii/board/models"
	"github.com/kustii/board/storage"
	"github.com/kustii/board/testutil"
)

var (
	superadmin = Actor{Identity: "superadmin", Role: auth.RoleSuperAdmin}
	admin      = Actor{Identity: "admin", Role: auth.RoleAdmin}
	user       = Actor{Identity: "kim", Role: auth.RoleUser}

	forum = boards.Ref{Family: "mainbusiness", Type: "forum"}
	essay = boards.Ref{Family: "mainbusiness", Type: "essay"}
	news  = boards.Ref{Family: "notice", Type: "news"}
	media = boards.Ref{Family: "media", Type: "media"}
	hello = boards.Ref{Family: "introduction", Type: "hello"}
	ctxBg = context.Background()
)

type fixture struct {
	db       *gorm.DB
	posts    *PostRepository
	comments *CommentRepository
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t)
	reg := boards.Default()
	root := t.TempDir()
	store := storage.NewDiskStore(root, "/static/uploads", 5)
	return &fixture{
		db:       db,
		posts:    NewPostRepository(db, reg, store, storage.NewThumbnailer(store, 480)),
		comments: NewCommentRepository(db, reg),
		root:     root,
	}
}

func (f *fixture) createPost(t *testing.T, ref boards.Ref, title string) *models.Post {
	t.Helper()
	p, err := f.posts.Create(ctxBg, ref, PostInput{Title: title, Content: title + " body"}, admin)
	require.NoError(t, err)
	return p
}

func (f *fixture) comment(t *testing.T, ref boards.Ref, postID, content, parent string, actor Actor) *models.CommentNode {
	t.Helper()
	n, err := f.comments.AddComment(ctxBg, ref, postID, CommentInput{Content: content, ParentID: parent}, actor)
	require.NoError(t, err)
	return n
}

func (f *fixture) record(t *testing.T, id string) models.Comment {
	t.Helper()
	var c models.Comment
	require.NoError(t, f.db.Where("id = ?", id).First(&c).Error)
	return c
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		img.Set(x, h/2, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
