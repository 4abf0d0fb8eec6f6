package announce

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lystaria/site-service/internal/config"
)

var testDirs = []config.ContentDir{
	{Dir: "src/content/posts", Prefix: "/blog", Kind: "posts"},
	{Dir: "src/content/updates", Prefix: "/updates", Kind: "updates"},
}

func newTestBuilder(logs *bytes.Buffer) *Builder {
	return NewBuilder("https://lystaria.im/", testDirs, slog.New(slog.NewTextHandler(logs, nil)))
}

func TestSlug(t *testing.T) {
	tests := []struct {
		file string
		dir  string
		want string
	}{
		{"posts/my-post/index.md", "posts", "my-post"},
		{"posts/my-post.md", "posts", "my-post"},
		{"posts/my-post.mdx", "posts/", "my-post"},
		{"posts/series/part-1.markdown", "posts", "series/part-1"},
		{"posts/Shadow-Work.MD", "posts", "Shadow-Work"},
		{"posts/index.md", "posts", ""},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, Slug(tt.file, tt.dir))
		})
	}
}

func TestTitleFromSlug(t *testing.T) {
	assert.Equal(t, "full moon rituals", TitleFromSlug("full-moon_rituals"))
	assert.Equal(t, "part 1", TitleFromSlug("series/part-1"))
	assert.Equal(t, "", TitleFromSlug(""))
}

func TestBuilder_Build(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)
	raw := []byte("---\ntitle: Full Moon Rituals\ndescription: Lunar work.\ncoverImage: /images/moon.png\n---\nBody")

	item, ok := b.Build("src/content/posts/full-moon/index.md", raw, "abc123")

	require.True(t, ok)
	a := item.Announcement
	assert.Equal(t, "abc123", a.SHA)
	assert.Equal(t, "https://lystaria.im/blog/full-moon", a.Post.URL)
	assert.Equal(t, a.Post.URL, a.RequestID, "requestId defaults to the canonical url")
	assert.Equal(t, "Full Moon Rituals", a.Post.Title)
	assert.Equal(t, "Lunar work.", a.Post.Excerpt)
	assert.Equal(t, "https://lystaria.im/images/moon.png", a.Post.Image)
	assert.Equal(t, "/blog/full-moon", item.Path)
	assert.Equal(t, "full-moon", item.Slug)
}

func TestBuilder_Build_FallbacksWithoutFrontmatter(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)

	item, ok := b.Build("src/content/updates/site_refresh-2026.md", []byte("just text"), "abc")

	require.True(t, ok)
	assert.Equal(t, "site refresh 2026", item.Announcement.Post.Title)
	assert.Equal(t, "https://lystaria.im/updates/site_refresh-2026", item.Announcement.Post.URL)
	assert.Equal(t, "", item.Announcement.Post.Image)
	assert.Equal(t, "", item.Announcement.Post.Excerpt)
}

func TestBuilder_Build_UnusableImageIsLogged(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)
	raw := []byte("---\ntitle: T\nimage: \"https://\"\n---\n")

	item, ok := b.Build("src/content/posts/t.md", raw, "abc")

	require.True(t, ok)
	assert.Equal(t, "", item.Announcement.Post.Image)
	assert.Contains(t, logs.String(), "ignoring unusable image")
}

func TestBuilder_Build_OutsideContentDirs(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)

	_, ok := b.Build("src/pages/about.md", []byte("x"), "abc")

	assert.False(t, ok)
}

func TestBuilder_Build_ContentDirIndexSkipped(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)

	for _, file := range []string{"src/content/posts/index.md", "src/content/updates/index.mdx"} {
		_, ok := b.Build(file, []byte("---\ntitle: Blog\n---\n"), "abc")
		assert.False(t, ok, file)
	}
}

func TestItem_PushMessage(t *testing.T) {
	var logs bytes.Buffer
	b := newTestBuilder(&logs)

	post, _ := b.Build("src/content/posts/a.md", []byte("---\ntitle: A\n---\n"), "x")
	update, _ := b.Build("src/content/updates/b.md", []byte("---\ntitle: B\n---\n"), "x")

	assert.Equal(t, "A new blog post is live. Tap to read.", post.PushMessage().Message)
	assert.Equal(t, "/blog/a", post.PushMessage().URL)
	assert.Equal(t, "A new update is live. Tap to read.", update.PushMessage().Message)
	assert.Equal(t, "B", update.PushMessage().Title)
}
