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
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// AuthScheme tags the variant carried by an Auth record.
type AuthScheme int

const (
	AuthNone AuthScheme = iota
	AuthBasic
	AuthDigest
	AuthUnknown
)

// DigestAlg is the "algorithm" token of an RFC 2617 Digest header.
type DigestAlg int

const (
	AlgMD5 DigestAlg = iota
	AlgMD5Sess
)

// DigestQoP is the "qop" token of an RFC 2617 Digest header.
type DigestQoP int

const (
	QoPNone DigestQoP = iota
	QoPAuth
	QoPAuthInt
)

// BasicAuth carries the still-encoded credential of an HTTP Basic
// Authorization header; the caller decodes and splits it.
type BasicAuth struct {
	Response string // base64 "user:pass", verbatim from the header
}

// DigestAuth carries the parsed components of an RFC 2617/7616 Digest
// Authorization header.
type DigestAuth struct {
	Alg      DigestAlg
	QoP      DigestQoP
	User     string
	Realm    string
	URI      string
	Nonce    string
	CNonce   string
	Response string
	Count    uint32
	Opaque   string
}

// Auth is a tagged union: at most one of Basic or
// Digest is populated, selected by Scheme. Authorised records whether
// the incoming header carried the minimum required components for its
// scheme; it is independent of Scheme so a caller can distinguish "no
// header" from "header present but incomplete".
type Auth struct {
	Scheme     AuthScheme
	Authorised bool
	Basic      BasicAuth
	Digest     DigestAuth
	// BodyMD5, when non-nil, is the worker-computed MD5 of the
	// request body, needed to validate an "auth-int" digest.
	BodyMD5 []byte
}

// DigestVerdict is the tri-state outcome of validating a Digest
// Authorization against a known secret.
type DigestVerdict int

const (
	DigestNotApplicable DigestVerdict = iota
	DigestMatch
	DigestMismatch
)

func md5Hex(parts ...string) string {
	h := md5.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte(":"))
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ValidateBasic implements khttpbasic_validate: it recomputes the
// base64("user:pass") response and compares it byte-for-byte against
// what the client sent.
func ValidateBasic(auth Auth, method Method, user, pass string) bool {
	if auth.Scheme != AuthBasic || method == MethodUnknown || !auth.Authorised {
		return false
	}
	want := base64.StdEncoding.EncodeToString([]byte(user + ":" + pass))
	return want == auth.Basic.Response
}

// ValidateDigestHash implements khttpdigest_validatehash: it validates a
// Digest Authorization given the precomputed H(user:realm:pass) ("skey4")
// rather than the plaintext password, so servers need never hold a
// recoverable password.
func ValidateDigestHash(auth Auth, method Method, ha1Precomputed string) DigestVerdict {
	if auth.Scheme != AuthDigest || method == MethodUnknown || !auth.Authorised {
		return DigestNotApplicable
	}
	d := auth.Digest

	ha1 := ha1Precomputed
	if d.Alg == AlgMD5Sess {
		ha1 = md5Hex(ha1Precomputed, d.Nonce, d.CNonce)
	}

	var ha2 string
	if d.QoP == QoPAuthInt {
		if auth.BodyMD5 == nil {
			return DigestNotApplicable
		}
		ha2 = md5Hex(methodVerb(method), d.URI, hex.EncodeToString(auth.BodyMD5))
	} else {
		ha2 = md5Hex(methodVerb(method), d.URI)
	}

	var response string
	switch d.QoP {
	case QoPAuth, QoPAuthInt:
		qop := "auth"
		if d.QoP == QoPAuthInt {
			qop = "auth-int"
		}
		count := fmt.Sprintf("%08x", d.Count)
		response = md5Hex(ha1, d.Nonce, count, d.CNonce, qop, ha2)
	default:
		response = md5Hex(ha1, d.Nonce, ha2)
	}

	if response == d.Response {
		return DigestMatch
	}
	return DigestMismatch
}

// ValidateDigest implements khttpdigest_validate: it hashes user, realm
// and the plaintext password into H(user:realm:pass) and defers to
// ValidateDigestHash.
func ValidateDigest(auth Auth, method Method, pass string) DigestVerdict {
	if auth.Scheme != AuthDigest || method == MethodUnknown || !auth.Authorised {
		return DigestNotApplicable
	}
	ha1 := md5Hex(auth.Digest.User, auth.Digest.Realm, pass)
	return ValidateDigestHash(auth, method, ha1)
}

func methodVerb(m Method) string {
	if m == MethodUnknown {
		return ""
	}
	return m.String()
}
