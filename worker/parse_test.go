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
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kristapsdz/kcgi-go"
)

// withLength adds a CONTENT_LENGTH entry matching body, the way a
// real CGI/FastCGI front end always does: ParseRequest only dispatches
// on Content-Type when ContentLength is positive.
func withLength(vars map[string]string, body []byte) map[string]string {
	vars["CONTENT_LENGTH"] = strconv.Itoa(len(body))
	return vars
}

func collectFields(e Env, body []byte) []kcgi.Field {
	var got []kcgi.Field
	ParseRequest(e, body, nil, func(f kcgi.Field) { got = append(got, f) }, nil)
	return got
}

func TestParseRequestURLEncodedBody(t *testing.T) {
	body := []byte("name=Bob&age=9")
	e := CollectEnv(withLength(map[string]string{"CONTENT_TYPE": "application/x-www-form-urlencoded"}, body))
	fields := collectFields(e, body)
	require.Len(t, fields, 2)
	assert.Equal(t, "name", fields[0].Key)
	assert.Equal(t, "Bob", string(fields[0].Value))
	assert.Equal(t, kcgi.InputForm, fields[0].Kind)
}

func TestParseRequestNoContentTypePassesBodyRaw(t *testing.T) {
	body := []byte("raw bytes")
	e := CollectEnv(withLength(map[string]string{}, body))
	fields := collectFields(e, body)
	require.Len(t, fields, 1)
	assert.Equal(t, "", fields[0].Key)
	assert.Equal(t, "raw bytes", string(fields[0].Value))
	assert.Equal(t, "application/octet-stream", fields[0].ContentType)
}

func TestParseRequestUnrecognisedContentTypePassesBodyRaw(t *testing.T) {
	body := []byte{0x01, 0x02, 0x03}
	e := CollectEnv(withLength(map[string]string{"CONTENT_TYPE": "application/octet-stream"}, body))
	fields := collectFields(e, body)
	require.Len(t, fields, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, fields[0].Value)
}

func TestParseRequestZeroLengthBodyEmitsNoField(t *testing.T) {
	e := CollectEnv(map[string]string{"CONTENT_TYPE": "application/octet-stream"})
	fields := collectFields(e, nil)
	assert.Empty(t, fields, "a zero-length body must short-circuit before the Content-Type dispatch")
}

func TestParseRequestTextPlainOnlyForPost(t *testing.T) {
	body := []byte("name=Bob\r\n")

	get := CollectEnv(withLength(map[string]string{"REQUEST_METHOD": "GET", "CONTENT_TYPE": "text/plain"}, body))
	getFields := collectFields(get, body)
	require.Len(t, getFields, 1)
	assert.Equal(t, "", getFields[0].Key, "text/plain is only structured for POST")

	post := CollectEnv(withLength(map[string]string{"REQUEST_METHOD": "POST", "CONTENT_TYPE": "text/plain"}, body))
	postFields := collectFields(post, body)
	require.Len(t, postFields, 1)
	assert.Equal(t, "name", postFields[0].Key)
	assert.Equal(t, "Bob", string(postFields[0].Value))
}

func TestParseRequestMultipartFormData(t *testing.T) {
	body := []byte("--B\r\n" +
		"Content-Disposition: form-data; name=\"f\"\r\n" +
		"\r\n" +
		"v\r\n" +
		"--B--\r\n")
	e := CollectEnv(withLength(map[string]string{"CONTENT_TYPE": `multipart/form-data; boundary=B`}, body))
	fields := collectFields(e, body)
	require.Len(t, fields, 1)
	assert.Equal(t, "f", fields[0].Key)
	assert.Equal(t, "v", string(fields[0].Value))
}

func TestParseRequestQueryStringAndCookies(t *testing.T) {
	e := CollectEnv(map[string]string{"QUERY_STRING": "a=1", "HTTP_COOKIE": "s=xyz"})
	fields := collectFields(e, nil)
	require.Len(t, fields, 2)
	assert.Equal(t, kcgi.InputQuery, fields[0].Kind)
	assert.Equal(t, kcgi.InputCookie, fields[1].Kind)
}

func TestParseAuthBasic(t *testing.T) {
	auth := ParseAuth("Basic QWxhZGRpbjpvcGVuc2VzYW1l", nil)
	assert.Equal(t, kcgi.AuthBasic, auth.Scheme)
	assert.True(t, auth.Authorised)
}

func TestParseAuthDigestAuthIntHashesBody(t *testing.T) {
	hdr := `Digest username="u", realm="r", nonce="n", uri="/", qop=auth-int, nc=00000001, cnonce="c", response="x"`
	auth := ParseAuth(hdr, []byte("body content"))
	require.NotNil(t, auth.BodyMD5)
	assert.Len(t, auth.BodyMD5, 16)
}
