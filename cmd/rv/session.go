package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/vanderheijden86/repoview/internal/cache"
	"github.com/vanderheijden86/repoview/internal/localsrc"
	"github.com/vanderheijden86/repoview/pkg/api"
	"github.com/vanderheijden86/repoview/pkg/config"
	"github.com/vanderheijden86/repoview/pkg/debug"
	"github.com/vanderheijden86/repoview/pkg/model"
	"github.com/vanderheijden86/repoview/pkg/watcher"
)

// sourceRef says what to browse: a tree on a server or a local directory.
type sourceRef struct {
	Name    string
	BaseURL string
	Root    string // tree URL, relative to BaseURL
	Path    string // local directory
}

func (s sourceRef) isLocal() bool {
	return s.Path != ""
}

// resolveSource picks the source from flags and config. Flags win over named
// sources, which win over the server section; with nothing configured the
// current directory is browsed.
func resolveSource(cfg config.Config, urlFlag, localFlag, rootFlag, sourceFlag string) (sourceRef, error) {
	switch {
	case localFlag != "":
		return sourceRef{Name: filepath.Base(localFlag), Path: localFlag}, nil
	case urlFlag != "":
		return remoteRef(urlFlag, urlFlag, rootFlag, cfg.Server.Root)
	case sourceFlag != "":
		src := cfg.FindSource(sourceFlag)
		if src == nil {
			return sourceRef{}, fmt.Errorf("unknown source %q", sourceFlag)
		}
		if src.IsLocal() {
			return sourceRef{Name: src.Name, Path: src.ResolvedPath()}, nil
		}
		return remoteRef(src.Name, src.URL, rootFlag, src.Root)
	case cfg.Server.BaseURL != "":
		return remoteRef(cfg.Server.BaseURL, cfg.Server.BaseURL, rootFlag, cfg.Server.Root)
	}
	wd, err := os.Getwd()
	if err != nil {
		return sourceRef{}, fmt.Errorf("determining working directory: %w", err)
	}
	return sourceRef{Name: filepath.Base(wd), Path: wd}, nil
}

// remoteRef builds a server source. The root is the explicit one, else the
// tree path of raw itself, else the configured fallback. A tree URL is
// always cut back to its scheme and host.
func remoteRef(name, raw, root, fallback string) (sourceRef, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return sourceRef{}, fmt.Errorf("parsing %q: %w", raw, err)
	}
	if api.KindFromURL(u.Path) == model.NodeTree {
		if root == "" {
			root = u.Path
		}
		u.Path, u.RawPath, u.RawQuery, u.Fragment = "", "", "", ""
	}
	root = firstNonEmpty(root, fallback)
	if root == "" {
		return sourceRef{}, errors.New("no tree to open: pass -root or a tree URL")
	}
	return sourceRef{Name: name, BaseURL: u.String(), Root: root}, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// session is the fetcher chain behind the browser:
// server or disk, then the response cache, then payload decoding.
type session struct {
	ref      sourceRef
	contents *api.Contents
	rootURL  string
	client   *api.Client
	local    *localsrc.Source
	store    *cache.Store
	watcher  *watcher.Watcher
}

type sessionOptions struct {
	NoCache bool
	Watch   bool
}

func openSession(ref sourceRef, cfg config.Config, opts sessionOptions) (*session, error) {
	s := &session{ref: ref}

	var raw api.RawFetcher
	if ref.isLocal() {
		src, err := localsrc.New(ref.Path, localsrc.WithHidden(cfg.ShowHidden()))
		if err != nil {
			return nil, err
		}
		s.local, s.rootURL, raw = src, src.RootURL(), src
	} else {
		client, err := api.NewClient(ref.BaseURL,
			api.WithToken(cfg.Server.Token),
			api.WithTimeout(cfg.Server.Timeout),
			api.WithLogger(debug.Logger()),
		)
		if err != nil {
			return nil, err
		}
		s.client, s.rootURL, raw = client, ref.Root, client
	}

	if !opts.NoCache && cfg.CacheEnabled() {
		store, err := openCache(cfg, raw, ref)
		if err != nil {
			return nil, err
		}
		s.store, raw = store, store
	}
	s.contents = api.NewContents(raw)

	if ref.isLocal() && opts.Watch {
		w, err := watcher.NewWatcher(s.local.Root(),
			watcher.WithOnError(func(err error) { debug.Log("watch: %v", err) }),
		)
		if err != nil {
			s.Close()
			return nil, err
		}
		if err := w.Start(); err != nil {
			// Browsing still works without live reload.
			debug.Log("watch %s: %v", s.local.Root(), err)
		} else {
			s.watcher = w
		}
	}
	return s, nil
}

// openCache opens the response cache. Local sources always cache in memory;
// the disk is the source of truth there. Server responses are scoped to the
// base URL since the persisted database is shared by every server.
func openCache(cfg config.Config, next api.RawFetcher, ref sourceRef) (*cache.Store, error) {
	path := cfg.CachePath()
	if ref.isLocal() {
		path = ""
	}
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating cache directory: %w", err)
		}
	}
	store, err := cache.Open(path, next,
		cache.WithTTL(cfg.Cache.TTL),
		cache.WithNamespace(strings.TrimRight(ref.BaseURL, "/")),
		cache.WithLogger(debug.Logger()),
	)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if n, err := store.Prune(context.Background()); err != nil {
			debug.Log("cache prune: %v", err)
		} else if n > 0 {
			debug.Log("cache prune: dropped %d expired responses", n)
		}
	}
	return store, nil
}

// invalidate drops cached responses for directories changed on disk.
func (s *session) invalidate(ctx context.Context, dirs []string) {
	if s.store == nil || s.local == nil {
		return
	}
	for _, dir := range dirs {
		prefixes, ok := s.local.Prefixes(dir)
		if !ok {
			continue
		}
		for _, p := range prefixes {
			if _, err := s.store.Invalidate(ctx, p); err != nil {
				debug.Log("cache invalidate %s: %v", p, err)
			}
		}
	}
}

// resolve returns the form of a URL worth copying: the file path for local
// sources, the absolute URL for servers.
func (s *session) resolve(u string) string {
	if s.local != nil {
		if p, err := s.local.PathFor(u); err == nil {
			return p
		}
		return u
	}
	if abs, err := s.client.Resolve(u); err == nil {
		return abs
	}
	return u
}

// describe is the one-line summary shown by -robot output.
func (s *session) describe() string {
	if s.local != nil {
		return s.local.Root()
	}
	return strings.TrimRight(s.ref.BaseURL, "/") + s.rootURL
}

func (s *session) Close() error {
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}
