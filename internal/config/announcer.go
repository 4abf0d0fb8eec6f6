package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ContentDir maps a repository content directory to its public URL prefix,
// e.g. src/content/posts -> /blog.
type ContentDir struct {
	Dir    string
	Prefix string
	Kind   string
}

// AnnouncerConfig configures the CI-side announce command
type AnnouncerConfig struct {
	Endpoint      string
	Secret        string
	SiteURL       string
	ContentDirs   string // dir=prefix[,dir=prefix]
	PushEndpoint  string
	PushSecret    string
	ChangedFiles  string
	RepoPath      string
	Timeout       time.Duration
	RetryCount    int
	RetryInterval time.Duration
	LogLevel      string
}

// AnnouncerFromEnv reads the announce command's environment. Flags may
// override the result before Validate is called.
func AnnouncerFromEnv() AnnouncerConfig {
	return AnnouncerConfig{
		Endpoint:      getEnv("ANNOUNCE_ENDPOINT", ""),
		Secret:        getEnv("ANNOUNCE_SECRET", ""),
		SiteURL:       strings.TrimRight(getEnv("SITE_URL", ""), "/"),
		ContentDirs:   getEnv("CONTENT_DIRS", ""),
		PushEndpoint:  getEnv("PUSH_WEBHOOK_URL", ""),
		PushSecret:    getEnv("PUSH_WEBHOOK_SECRET", ""),
		ChangedFiles:  getEnv("CHANGED_FILES", ""),
		RepoPath:      getEnv("REPO_PATH", "."),
		Timeout:       getEnvDuration("DELIVERY_TIMEOUT", 30*time.Second),
		RetryCount:    getEnvInt("RETRY_COUNT", 3),
		RetryInterval: getEnvDuration("RETRY_INTERVAL", time.Second),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// Validate reports every missing or malformed setting at once.
func (c AnnouncerConfig) Validate() error {
	var problems []string
	var missing []string

	if c.Endpoint == "" {
		missing = append(missing, "ANNOUNCE_ENDPOINT")
	}
	if c.Secret == "" {
		missing = append(missing, "ANNOUNCE_SECRET")
	}
	if c.SiteURL == "" {
		missing = append(missing, "SITE_URL")
	}
	if c.ContentDirs == "" {
		missing = append(missing, "CONTENT_DIRS")
	}
	if c.PushEndpoint != "" && c.PushSecret == "" {
		missing = append(missing, "PUSH_WEBHOOK_SECRET")
	}
	if len(missing) > 0 {
		problems = append(problems, "missing required settings: "+strings.Join(missing, ", "))
	}

	if c.SiteURL != "" {
		if u, err := url.Parse(c.SiteURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("SITE_URL must be an absolute http(s) URL, got %q", c.SiteURL))
		}
	}
	if c.ContentDirs != "" {
		if _, err := ParseContentDirs(c.ContentDirs); err != nil {
			problems = append(problems, err.Error())
		}
	}
	if c.RetryCount < 1 {
		problems = append(problems, "RETRY_COUNT must be at least 1")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%s", strings.Join(problems, "; "))
	}
	return nil
}

// Dirs parses ContentDirs. Call Validate first.
func (c AnnouncerConfig) Dirs() []ContentDir {
	dirs, _ := ParseContentDirs(c.ContentDirs)
	return dirs
}

// ParseContentDirs parses "dir=prefix[,dir=prefix]". At most two entries are
// accepted. The kind of each directory is its last path segment.
func ParseContentDirs(s string) ([]ContentDir, error) {
	var dirs []ContentDir
	for _, entry := range strings.Split(s, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		dir, prefix, ok := strings.Cut(entry, "=")
		dir = strings.Trim(strings.TrimSpace(dir), "/")
		prefix = strings.TrimSpace(prefix)
		if !ok || dir == "" || prefix == "" {
			return nil, fmt.Errorf("CONTENT_DIRS entry %q must look like dir=/prefix", entry)
		}
		prefix = "/" + strings.Trim(prefix, "/")
		if prefix == "/" {
			prefix = ""
		}
		kind := dir
		if i := strings.LastIndex(dir, "/"); i >= 0 {
			kind = dir[i+1:]
		}
		dirs = append(dirs, ContentDir{Dir: dir, Prefix: prefix, Kind: kind})
	}
	if len(dirs) == 0 {
		return nil, fmt.Errorf("CONTENT_DIRS must name at least one directory")
	}
	if len(dirs) > 2 {
		return nil, fmt.Errorf("CONTENT_DIRS accepts at most two directories, got %d", len(dirs))
	}
	return dirs, nil
}
