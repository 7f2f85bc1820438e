// Copyright 2024 The kcgi-go Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package worker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kristapsdz/kcgi-go"
)

func TestCollectEnvDefaults(t *testing.T) {
	e := CollectEnv(map[string]string{})
	assert.Equal(t, kcgi.MethodGet, e.Method)
	assert.Equal(t, kcgi.AuthNone, e.Auth)
	assert.Equal(t, kcgi.SchemeHTTP, e.Scheme)
	assert.Equal(t, "127.0.0.1", e.Remote)
	assert.Equal(t, uint16(80), e.Port)
	assert.Equal(t, "localhost", e.Host)
}

func TestCollectEnvPopulatesFromVars(t *testing.T) {
	vars := map[string]string{
		"REQUEST_METHOD": "POST",
		"AUTH_TYPE":      "Basic",
		"HTTPS":          "on",
		"REMOTE_ADDR":    "10.0.0.5",
		"SERVER_PORT":    "8443",
		"HTTP_HOST":      "example.com",
		"CONTENT_TYPE":   "application/json",
		"CONTENT_LENGTH": "128",
		"QUERY_STRING":   "a=1",
		"HTTP_COOKIE":    "s=1",
	}
	e := CollectEnv(vars)
	assert.Equal(t, kcgi.MethodPost, e.Method)
	assert.Equal(t, kcgi.AuthBasic, e.Auth)
	assert.Equal(t, kcgi.SchemeHTTPS, e.Scheme)
	assert.Equal(t, "10.0.0.5", e.Remote)
	assert.Equal(t, uint16(8443), e.Port)
	assert.Equal(t, "example.com", e.Host)
	assert.Equal(t, int64(128), e.ContentLength)
	assert.Equal(t, "a=1", e.QueryString)
	assert.Equal(t, "s=1", e.Cookie)
}

func TestCollectEnvUnknownAuthType(t *testing.T) {
	e := CollectEnv(map[string]string{"AUTH_TYPE": "Bearer"})
	assert.Equal(t, kcgi.AuthUnknown, e.Auth)
}

func TestParsePathSplitsPageSuffixAndSubpath(t *testing.T) {
	e := CollectEnv(map[string]string{"PATH_INFO": "/article.html/comments/5"})
	assert.Equal(t, "article", e.Path)
	assert.Equal(t, "html", e.Suffix)
	assert.Equal(t, "comments/5", e.PageName)
}

func TestParsePathNoSuffix(t *testing.T) {
	e := CollectEnv(map[string]string{"PATH_INFO": "/articles"})
	assert.Equal(t, "articles", e.Path)
	assert.Empty(t, e.Suffix)
	assert.Empty(t, e.PageName)
}

func TestParsePathEmpty(t *testing.T) {
	e := CollectEnv(map[string]string{"PATH_INFO": ""})
	assert.Empty(t, e.Path)

	root := CollectEnv(map[string]string{"PATH_INFO": "/"})
	assert.Empty(t, root.Path)
}
