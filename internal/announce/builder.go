// Package announce turns changed content files into announcements and
// delivers them to the receiver.
package announce

import (
	"log/slog"
	"path"
	"strings"

	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/frontmatter"
	"github.com/lystaria/site-service/internal/models"
	"github.com/lystaria/site-service/internal/urlutil"
)

var markdownExts = []string{".markdown", ".mdx", ".md"}

// Item is one built announcement together with where it came from.
type Item struct {
	File         string
	Dir          config.ContentDir
	Slug         string
	Path         string // site-relative path, e.g. /blog/my-post
	Announcement models.Announcement
}

// PushMessage renders the push notification for the item.
func (it Item) PushMessage() models.PushMessage {
	message := "A new blog post is live. Tap to read."
	if it.Dir.Kind == "updates" {
		message = "A new update is live. Tap to read."
	}
	return models.PushMessage{
		Title:   it.Announcement.Post.Title,
		Message: message,
		URL:     it.Path,
	}
}

// Builder derives announcements from content files.
type Builder struct {
	siteURL string
	dirs    []config.ContentDir
	logger  *slog.Logger
}

// NewBuilder creates a Builder for the given site and content directories.
func NewBuilder(siteURL string, dirs []config.ContentDir, logger *slog.Logger) *Builder {
	return &Builder{
		siteURL: strings.TrimRight(siteURL, "/"),
		dirs:    dirs,
		logger:  logger,
	}
}

// Build creates the announcement for file. It returns false when file is not
// under a configured content directory or is the directory's own index page;
// missing metadata never fails a build.
func (b *Builder) Build(file string, raw []byte, sha string) (Item, bool) {
	dir, ok := b.dirFor(file)
	if !ok {
		return Item{}, false
	}

	slug := Slug(file, dir.Dir)
	if slug == "" {
		return Item{}, false
	}
	sitePath := dir.Prefix + "/" + slug
	postURL := b.siteURL + sitePath
	fields := frontmatter.Extract(raw)

	title := fields.Title
	if title == "" {
		title = TitleFromSlug(slug)
	}
	if title == "" {
		title = dir.Kind
	}

	image := urlutil.AbsoluteURL(fields.Image, b.siteURL)
	if image != "" && !urlutil.IsHTTPURL(image) {
		b.logger.Warn("ignoring unusable image", "file", file, "image", fields.Image)
		image = ""
	}

	return Item{
		File: file,
		Dir:  dir,
		Slug: slug,
		Path: sitePath,
		Announcement: models.Announcement{
			SHA:       sha,
			RequestID: postURL,
			Post: models.PostSummary{
				Title:   title,
				URL:     postURL,
				Excerpt: fields.Excerpt,
				Image:   image,
			},
		},
	}, true
}

func (b *Builder) dirFor(file string) (config.ContentDir, bool) {
	for _, d := range b.dirs {
		if strings.HasPrefix(file, d.Dir+"/") {
			return d, true
		}
	}
	return config.ContentDir{}, false
}

// Slug strips dir and the markdown extension from file and collapses a
// trailing /index, so posts/a/index.md and posts/a.md both yield "a".
func Slug(file, dir string) string {
	rel := strings.TrimPrefix(file, strings.TrimRight(dir, "/")+"/")
	lower := strings.ToLower(rel)
	for _, ext := range markdownExts {
		if strings.HasSuffix(lower, ext) {
			rel = rel[:len(rel)-len(ext)]
			break
		}
	}
	if rel == "index" {
		return ""
	}
	return strings.TrimSuffix(rel, "/index")
}

// TitleFromSlug makes a readable title from the last slug segment.
func TitleFromSlug(slug string) string {
	last := path.Base(slug)
	if last == "." || last == "/" {
		return ""
	}
	title := strings.NewReplacer("_", " ", "-", " ").Replace(last)
	return strings.Join(strings.Fields(title), " ")
}
