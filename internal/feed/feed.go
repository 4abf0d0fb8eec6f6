// Package feed renders the blog's RSS feed from the posts content directory.
package feed

import (
	"fmt"
	"html"
	"io"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lystaria/site-service/internal/announce"
	"github.com/lystaria/site-service/internal/config"
	"github.com/lystaria/site-service/internal/frontmatter"
	"github.com/lystaria/site-service/internal/urlutil"
)

var dateOnly = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.RFC1123Z,
	time.RFC1123,
	"January 2, 2006",
	"Jan 2, 2006",
}

// Post is one entry of the feed.
type Post struct {
	Slug        string
	Title       string
	Description string
	PubDate     time.Time
	UpdatedDate time.Time
	Tags        []string
	CoverImage  string
}

// Generator builds the feed from markdown files.
type Generator struct {
	files    fs.FS
	postsDir string
	siteURL  string
	cfg      config.FeedConfig
	policy   *bluemonday.Policy
	now      func() time.Time
	loc      *time.Location
}

// NewGenerator creates a Generator reading cfg.PostsDir from files.
func NewGenerator(files fs.FS, siteURL string, cfg config.FeedConfig) *Generator {
	return &Generator{
		files:    files,
		postsDir: strings.Trim(path.Clean(cfg.PostsDir), "/"),
		siteURL:  strings.TrimRight(siteURL, "/"),
		cfg:      cfg,
		policy:   bluemonday.UGCPolicy(),
		now:      time.Now,
		loc:      time.Local,
	}
}

// Posts loads every post, newest first.
func (g *Generator) Posts() ([]Post, error) {
	var posts []Post
	err := fs.WalkDir(g.files, g.postsDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isMarkdown(p) {
			return nil
		}

		raw, err := fs.ReadFile(g.files, p)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", p, err)
		}
		posts = append(posts, g.post(p, raw))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	sort.SliceStable(posts, func(i, j int) bool {
		if !posts[i].PubDate.Equal(posts[j].PubDate) {
			return posts[i].PubDate.After(posts[j].PubDate)
		}
		return posts[i].Slug < posts[j].Slug
	})
	return posts, nil
}

func (g *Generator) post(p string, raw []byte) Post {
	rec, _ := frontmatter.Parse(raw)
	slug := announce.Slug(p, g.postsDir)

	post := Post{
		Slug:        slug,
		Title:       stringField(rec, "title"),
		Description: stringField(rec, "description"),
		PubDate:     g.normalizeDate(rec["pubDate"]),
		Tags:        stringList(rec["tags"]),
		CoverImage:  stringField(rec, "coverImage"),
	}
	if post.Title == "" {
		post.Title = announce.TitleFromSlug(slug)
	}
	if v, ok := rec["updatedDate"]; ok && v != nil {
		post.UpdatedDate = g.normalizeDate(v)
	}
	return post
}

// Write renders the feed as RSS 2.0.
func (g *Generator) Write(w io.Writer) error {
	posts, err := g.Posts()
	if err != nil {
		return err
	}

	doc := rss{
		Version:   "2.0",
		AtomNS:    atomNS,
		MediaNS:   mediaNS,
		ContentNS: contentNS,
		Channel: channel{
			Title:       g.cfg.Title,
			Link:        g.siteURL + "/",
			Description: g.cfg.Description,
			Language:    "en-us",
			AtomLink: atomLink{
				Href: g.siteURL + "/rss.xml",
				Rel:  "self",
				Type: "application/rss+xml",
			},
		},
	}
	for _, p := range posts {
		doc.Channel.Items = append(doc.Channel.Items, g.item(p))
	}

	if err := encode(w, doc); err != nil {
		return fmt.Errorf("failed to encode feed: %w", err)
	}
	return nil
}

func (g *Generator) item(p Post) item {
	link := g.siteURL + "/blog/" + p.Slug + "/"
	it := item{
		Title:       p.Title,
		Link:        link,
		GUID:        guid{IsPermaLink: true, Value: link},
		Description: p.Description,
		PubDate:     p.PubDate.Format(time.RFC1123Z),
		Categories:  p.Tags,
	}

	// without a cover the body is the bare description
	content := html.EscapeString(p.Description)
	if cover := urlutil.AbsoluteURL(p.CoverImage, g.siteURL); cover != "" {
		typ := imageType(cover)
		it.Enclosure = &enclosure{URL: cover, Type: typ}
		it.Media = &mediaContent{URL: cover, Medium: "image", Type: typ}
		content = fmt.Sprintf(`<img src="%s" alt="%s" /><p>%s</p>`, html.EscapeString(cover), html.EscapeString(p.Title), content)
	}
	it.Content = &cdata{Value: g.policy.Sanitize(content)}
	return it
}

// normalizeDate turns a frontmatter date into a time. Date-only values and
// exact midnights land on local noon so feed readers do not shift them a day.
// Missing or unparsable values become now.
func (g *Generator) normalizeDate(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return g.noonIfMidnight(t)
	case string:
		s := strings.TrimSpace(t)
		if dateOnly.MatchString(s) {
			if d, err := time.ParseInLocation("2006-01-02", s, g.loc); err == nil {
				return g.noonIfMidnight(d)
			}
		}
		for _, layout := range dateLayouts {
			if d, err := time.ParseInLocation(layout, s, g.loc); err == nil {
				return g.noonIfMidnight(d)
			}
		}
	}
	return g.now()
}

func (g *Generator) noonIfMidnight(t time.Time) time.Time {
	local := t.In(g.loc)
	if local.Hour() == 0 && local.Minute() == 0 && local.Second() == 0 && local.Nanosecond() == 0 {
		return time.Date(local.Year(), local.Month(), local.Day(), 12, 0, 0, 0, g.loc)
	}
	return t
}

func isMarkdown(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".mdx", ".markdown":
		return true
	}
	return false
}

func stringField(rec frontmatter.Record, key string) string {
	s, _ := rec[key].(string)
	return strings.TrimSpace(s)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
