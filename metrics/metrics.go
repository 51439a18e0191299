// Package metrics holds the prometheus collectors of the board server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PostsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_posts_written_total",
		Help: "Post writes by board type and operation (create, update, delete).",
	}, []string{"type", "op"})

	PostViews = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_post_views_total",
		Help: "Detail reads that incremented a view counter.",
	}, []string{"type"})

	CommentsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "board_comments_written_total",
		Help: "Comment writes by kind (comment, reply) and operation (add, delete).",
	}, []string{"kind", "op"})

	MirrorRepairs = promauto.NewCounter(prometheus.CounterOpts{
		Name: "board_mirror_repairs_total",
		Help: "Posts whose embedded comment list was rebuilt from the comment records.",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "board_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)
