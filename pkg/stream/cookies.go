// Copyright (c) 2025, WSO2 LLC. (https://www.wso2.com).
//
// WSO2 LLC. licenses this file to you under the Apache License,
// Version 2.0 (the "License"); you may not use this file except
// in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing,
// software distributed under the License is distributed on an
// "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
// KIND, either express or implied. See the License for the
// specific language governing permissions and limitations
// under the License.

package stream

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"github.com/wso2/api-platform/gateway/gateway-runtime/stream-bridge/pkg/core"
	"golang.org/x/net/publicsuffix"
)

// CookieStore is the process-wide cookie jar shared by every client. The
// jar decides which cookies apply to a URI; the original Set-Cookie form of
// each stored cookie is kept so that it can be returned unchanged.
type CookieStore struct {
	mu       sync.Mutex
	jar      *cookiejar.Jar
	original map[string]*http.Cookie
}

var (
	cookiesOnce sync.Once
	cookies     *CookieStore
)

// Cookies returns the process-wide store.
func Cookies() *CookieStore {
	cookiesOnce.Do(func() {
		cookies = NewCookieStore()
	})
	return cookies
}

func NewCookieStore() *CookieStore {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return &CookieStore{jar: jar, original: make(map[string]*http.Cookie)}
}

func parseURI(uri string) (*url.URL, error) {
	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid uri %q", core.ErrBadArgument, uri)
	}
	return u, nil
}

func cookieKey(u *url.URL, c *http.Cookie) string {
	domain := c.Domain
	if domain == "" {
		domain = u.Hostname()
	}
	return domain + ";" + c.Path + ";" + c.Name
}

// AddCookies stores Set-Cookie formatted strings as if received from uri.
func (s *CookieStore) AddCookies(uri string, setCookies []string) error {
	u, err := parseURI(uri)
	if err != nil {
		return err
	}
	parsed := make([]*http.Cookie, 0, len(setCookies))
	for _, line := range setCookies {
		c, err := http.ParseSetCookie(line)
		if err != nil {
			return fmt.Errorf("%w: cookie %q: %v", core.ErrBadArgument, line, err)
		}
		parsed = append(parsed, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jar.SetCookies(u, parsed)
	for _, c := range parsed {
		s.original[cookieKey(u, c)] = c
	}
	return nil
}

// GetCookies returns, in Set-Cookie form, the cookies the jar would send
// to uri.
func (s *CookieStore) GetCookies(uri string) ([]string, error) {
	u, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	matched := s.jar.Cookies(u)
	out := make([]string, 0, len(matched))
	for _, m := range matched {
		out = append(out, s.lookupLocked(u, m).String())
	}
	return out, nil
}

func (s *CookieStore) lookupLocked(u *url.URL, m *http.Cookie) *http.Cookie {
	for _, c := range s.original {
		if c.Name != m.Name || c.Value != m.Value {
			continue
		}
		if c.Domain == "" || domainMatch(u.Hostname(), c.Domain) {
			return c
		}
	}
	return m
}

func domainMatch(host, domain string) bool {
	if domain != "" && domain[0] == '.' {
		domain = domain[1:]
	}
	if host == domain {
		return true
	}
	return len(host) > len(domain) && host[len(host)-len(domain)-1:] == "."+domain
}
