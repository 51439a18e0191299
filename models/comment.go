package models

import (
	"strconv"
	"time"

	"gorm.io/gorm"
)

// Comment is the authoritative record of a top-level comment. Replies live only
// inside Replies, never as rows of their own.
type Comment struct {
	ID        string        `gorm:"primaryKey;size:36" json:"_id"`
	PostID    string        `gorm:"size:36;index;not null" json:"post_id"`
	BoardType string        `gorm:"size:32;index;not null" json:"type"`
	User      string        `gorm:"size:64;not null" json:"user"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	IsAdmin   bool          `gorm:"not null;default:false" json:"is_admin"`
	Replies   []CommentNode `gorm:"serializer:json;type:text" json:"replies"`
	CreatedAt time.Time     `json:"created_at"`
}

// BeforeSave keeps the reply tree from being persisted as JSON null.
func (c *Comment) BeforeSave(tx *gorm.DB) error {
	if c.Replies == nil {
		c.Replies = []CommentNode{}
	}
	return nil
}

// Node returns the embedded copy of the record, reply tree included.
func (c *Comment) Node() CommentNode {
	replies := c.Replies
	if replies == nil {
		replies = []CommentNode{}
	}
	return CommentNode{
		ID:        c.ID,
		User:      c.User,
		Content:   c.Content,
		IsAdmin:   c.IsAdmin,
		Replies:   replies,
		CreatedAt: c.CreatedAt,
	}
}

// CommentNode is the embedded shape shared by mirror entries and replies.
type CommentNode struct {
	ID        string        `json:"_id"`
	User      string        `json:"user"`
	Content   string        `json:"content"`
	IsAdmin   bool          `json:"is_admin"`
	Replies   []CommentNode `json:"replies"`
	CreatedAt time.Time     `json:"created_at"`
}

// FindNode returns the node with the given id anywhere in the forest, or nil.
// The returned pointer aliases the forest, so writes through it stick.
func FindNode(nodes []CommentNode, id string) *CommentNode {
	for i := range nodes {
		if nodes[i].ID == id {
			return &nodes[i]
		}
		if n := FindNode(nodes[i].Replies, id); n != nil {
			return n
		}
	}
	return nil
}

// AppendReply appends reply under the node with id parentID.
func AppendReply(nodes []CommentNode, parentID string, reply CommentNode) bool {
	parent := FindNode(nodes, parentID)
	if parent == nil {
		return false
	}
	parent.Replies = append(parent.Replies, reply)
	return true
}

// RemoveNode removes the node with the given id, and its subtree, from the forest.
func RemoveNode(nodes []CommentNode, id string) ([]CommentNode, bool) {
	for i := range nodes {
		if nodes[i].ID == id {
			out := make([]CommentNode, 0, len(nodes)-1)
			out = append(out, nodes[:i]...)
			return append(out, nodes[i+1:]...), true
		}
		if replies, ok := RemoveNode(nodes[i].Replies, id); ok {
			nodes[i].Replies = replies
			return nodes, true
		}
	}
	return nodes, false
}

// UpsertNode replaces the top-level entry with node's id, or appends node.
func UpsertNode(nodes []CommentNode, node CommentNode) []CommentNode {
	for i := range nodes {
		if nodes[i].ID == node.ID {
			nodes[i] = node
			return nodes
		}
	}
	return append(nodes, node)
}

// TreeSignature flattens the ids of a forest in depth-first order.
// Two forests with the same signature have the same membership and ordering.
func TreeSignature(nodes []CommentNode) []string {
	var ids []string
	var walk func([]CommentNode, int)
	walk = func(ns []CommentNode, depth int) {
		for _, n := range ns {
			ids = append(ids, strconv.Itoa(depth)+":"+n.ID)
			walk(n.Replies, depth+1)
		}
	}
	walk(nodes, 0)
	return ids
}
