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

package kcgi

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateBasic(t *testing.T) {
	resp := base64.StdEncoding.EncodeToString([]byte("alice:s3cret"))
	auth := Auth{Scheme: AuthBasic, Authorised: true, Basic: BasicAuth{Response: resp}}

	assert.True(t, ValidateBasic(auth, MethodGet, "alice", "s3cret"))
	assert.False(t, ValidateBasic(auth, MethodGet, "alice", "wrong"))
	assert.False(t, ValidateBasic(Auth{Scheme: AuthNone}, MethodGet, "alice", "s3cret"))
}

func TestValidateDigestHashRoundTrip(t *testing.T) {
	const (
		user  = "Mufasa"
		realm = "testrealm@host.com"
		pass  = "Circle Of Life"
		nonce = "dcd98b7102dd2f0e8b11d0f600bfb0c093"
		uri   = "/dir/index.html"
	)

	ha1 := md5Hex(user, realm, pass)
	ha2 := md5Hex("GET", uri)
	want := md5Hex(ha1, nonce, ha2)

	auth := Auth{
		Scheme:     AuthDigest,
		Authorised: true,
		Digest: DigestAuth{
			User: user, Realm: realm, Nonce: nonce, URI: uri,
			Response: want, QoP: QoPNone,
		},
	}

	assert.Equal(t, DigestMatch, ValidateDigestHash(auth, MethodGet, ha1))

	auth.Digest.Response = "deadbeef"
	assert.Equal(t, DigestMismatch, ValidateDigestHash(auth, MethodGet, ha1))
}

func TestValidateDigestQopAuth(t *testing.T) {
	const (
		user  = "bob"
		realm = "r"
		pass  = "secret"
		nonce = "n"
		uri   = "/"
		cnonce = "abcd1234"
		nc    = "00000001"
	)

	ha1 := md5Hex(user, realm, pass)
	ha2 := md5Hex("GET", uri)
	want := md5Hex(ha1, nonce, nc, cnonce, "auth", ha2)

	auth := Auth{
		Scheme:     AuthDigest,
		Authorised: true,
		Digest: DigestAuth{
			User: user, Realm: realm, Nonce: nonce, URI: uri,
			CNonce: cnonce, Count: 1, QoP: QoPAuth, Response: want,
		},
	}

	assert.Equal(t, DigestMatch, ValidateDigest(auth, MethodGet, pass))
}

func TestValidateDigestAuthIntRequiresBodyMD5(t *testing.T) {
	auth := Auth{
		Scheme:     AuthDigest,
		Authorised: true,
		Digest:     DigestAuth{QoP: QoPAuthInt},
	}
	assert.Equal(t, DigestNotApplicable, ValidateDigestHash(auth, MethodGet, "x"))
}
