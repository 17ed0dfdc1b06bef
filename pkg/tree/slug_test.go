package tree

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugify(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Post 3", "post-3"},
		{"  Hello, World!  ", "hello-world"},
		{"Café Menü", "cafe-menu"},
		{"Ärger über Öl", "arger-uber-ol"},
		{"already-slugged", "already-slugged"},
		{"a//b", "a-b"},
		{"日本語", "日本語"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Slugify(tt.in), tt.in)
	}
	assert.Equal(t, fallbackSegment, segmentFor("!!!"))
}

func TestRebaseSlug(t *testing.T) {
	tests := []struct {
		slug, oldBase, newBase string
		want                   string
		ok                     bool
	}{
		{"/blog/post-1", "/blog", "/archive", "/archive/post-1", true},
		{"/blog/2024/post", "/blog", "/archive", "/archive/2024/post", true},
		{"/custom-name", "/blog", "/archive", "/custom-name", false},
		{"/blogroll/x", "/blog", "/archive", "/blogroll/x", false},
		{"/blog", "/blog", "/archive", "/blog", false},
		{"/about", "/", "/blog", "/blog/about", true},
		{"/blog/about", "/blog", "/", "/about", true},
		{"/x", "", "/blog", "/x", false},
	}
	for _, tt := range tests {
		got, ok := rebaseSlug(tt.slug, tt.oldBase, tt.newBase)
		assert.Equal(t, tt.want, got, tt.slug)
		assert.Equal(t, tt.ok, ok, tt.slug)
	}
}

func TestSuffixed(t *testing.T) {
	assert.Equal(t, "/a", suffixed("/a", 1))
	assert.Equal(t, "/a-2", suffixed("/a", 2))
	assert.Equal(t, "/a-10", suffixed("/a", 10))
}

func TestMutexLocker(t *testing.T) {
	l := NewMutexLocker()
	unlock, err := l.Lock(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	unlock()
	unlock2, err := l.Lock(context.Background())
	require.NoError(t, err)
	unlock2()
}

func TestErrorKinds(t *testing.T) {
	err := newError(KindNoSuchPage, "page %s", "x")
	assert.Equal(t, "no-such-page: page x", err.Error())
	assert.ErrorIs(t, err, ErrNoSuchPage)
	assert.NotErrorIs(t, err, ErrNoSuchParent)
	assert.Equal(t, KindNoSuchPage, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(context.Canceled))
}
