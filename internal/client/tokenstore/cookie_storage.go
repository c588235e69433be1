package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultCookieMaxAge 会话cookie有效期
const DefaultCookieMaxAge = 7 * 24 * time.Hour

// CookieStorage 以Set-Cookie行持久化到文件的cookie存储，作为主存储的备份
type CookieStorage struct {
	mu     sync.Mutex
	path   string
	maxAge time.Duration
	now    func() time.Time
}

func NewCookieStorage(path string, maxAge time.Duration) *CookieStorage {
	if maxAge <= 0 {
		maxAge = DefaultCookieMaxAge
	}
	return &CookieStorage{
		path:   path,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (s *CookieStorage) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := s.load()
	if err != nil {
		return "", false, err
	}
	for _, c := range cookies {
		if c.Name != key {
			continue
		}
		value, err := url.QueryUnescape(c.Value)
		if err != nil {
			return "", false, fmt.Errorf("decode cookie %s: %w", key, err)
		}
		return value, true, nil
	}
	return "", false, nil
}

func (s *CookieStorage) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := s.load()
	if err != nil {
		return err
	}
	cookie := &http.Cookie{
		Name:     key,
		Value:    url.QueryEscape(value),
		Path:     "/",
		MaxAge:   int(s.maxAge.Seconds()),
		Expires:  s.now().Add(s.maxAge).UTC(),
		SameSite: http.SameSiteLaxMode,
	}
	if err := cookie.Valid(); err != nil {
		return fmt.Errorf("invalid cookie %s: %w", key, err)
	}

	kept := cookies[:0]
	for _, c := range cookies {
		if c.Name != key {
			kept = append(kept, c)
		}
	}
	return s.save(append(kept, cookie))
}

func (s *CookieStorage) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cookies, err := s.load()
	if err != nil {
		return err
	}
	kept := cookies[:0]
	for _, c := range cookies {
		if c.Name != key {
			kept = append(kept, c)
		}
	}
	if len(kept) == len(cookies) {
		return nil
	}
	return s.save(kept)
}

// load 读取未过期的cookie，无法解析的行直接丢弃
func (s *CookieStorage) load() ([]*http.Cookie, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cookie file: %w", err)
	}

	now := s.now()
	var cookies []*http.Cookie
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		c, err := http.ParseSetCookie(line)
		if err != nil {
			continue
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !now.Before(c.Expires)) {
			continue
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}

func (s *CookieStorage) save(cookies []*http.Cookie) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create cookie dir: %w", err)
	}

	var b strings.Builder
	for _, c := range cookies {
		b.WriteString(c.String())
		b.WriteString("\n")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write cookie file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace cookie file: %w", err)
	}
	return nil
}
