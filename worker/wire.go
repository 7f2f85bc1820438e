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
	"io"

	"github.com/kristapsdz/kcgi-go"
	"github.com/kristapsdz/kcgi-go/internal/ipc"
)

// fieldMarker precedes each Field record on the wire; endMarker
// follows the last one, the Go equivalent of child.c writing a
// sentinel "enum input" value of IN__MAX once output() calls are
// done.
const (
	fieldMarker uint8 = 1
	endMarker   uint8 = 0
)

// WriteField serialises one Field to w exactly once, in the order
// output() writes a kpair in child.c: kind, key, value, parse state,
// parsed union, file, content-type (+ index), transfer-encoding.
func WriteField(w io.Writer, f kcgi.Field) error {
	if err := ipc.WriteFixed(w, fieldMarker); err != nil {
		return err
	}
	if err := ipc.WriteFixed(w, int32(f.Kind)); err != nil {
		return err
	}
	if err := ipc.WriteWord(w, f.Key); err != nil {
		return err
	}
	if err := ipc.WriteBytes(w, f.Value); err != nil {
		return err
	}
	if err := ipc.WriteFixed(w, int32(f.State)); err != nil {
		return err
	}
	if err := ipc.WriteFixed(w, int32(f.Parsed.Kind)); err != nil {
		return err
	}
	switch f.Parsed.Kind {
	case kcgi.ParsedInt64:
		if err := ipc.WriteFixed(w, f.Parsed.Int64); err != nil {
			return err
		}
	case kcgi.ParsedDouble:
		if err := ipc.WriteFixed(w, f.Parsed.Double); err != nil {
			return err
		}
	case kcgi.ParsedString:
		if err := ipc.WriteWord(w, f.Parsed.Str); err != nil {
			return err
		}
	}
	if err := ipc.WriteWord(w, f.File); err != nil {
		return err
	}
	if err := ipc.WriteWord(w, f.ContentType); err != nil {
		return err
	}
	if err := ipc.WriteFixed(w, int32(f.ContentTypeIndex)); err != nil {
		return err
	}
	return ipc.WriteWord(w, f.ContentTransferEncoding)
}

// WriteFieldsEnd writes the sentinel that terminates a Field stream.
func WriteFieldsEnd(w io.Writer) error {
	return ipc.WriteFixed(w, endMarker)
}

// writeAuth serialises a kcgi.Auth, matching kworker_auth_child's
// "scheme tag then whichever union member applies" shape.
func writeAuth(w io.Writer, a kcgi.Auth) error {
	if err := ipc.WriteFixed(w, int32(a.Scheme)); err != nil {
		return err
	}
	if err := ipc.WriteFixed(w, a.Authorised); err != nil {
		return err
	}
	switch a.Scheme {
	case kcgi.AuthBasic:
		if err := ipc.WriteWord(w, a.Basic.Response); err != nil {
			return err
		}
	case kcgi.AuthDigest:
		d := a.Digest
		if err := ipc.WriteFixed(w, int32(d.Alg)); err != nil {
			return err
		}
		if err := ipc.WriteFixed(w, int32(d.QoP)); err != nil {
			return err
		}
		for _, s := range []string{d.User, d.Realm, d.URI, d.Nonce, d.CNonce, d.Response, d.Opaque} {
			if err := ipc.WriteWord(w, s); err != nil {
				return err
			}
		}
		if err := ipc.WriteFixed(w, d.Count); err != nil {
			return err
		}
	}
	if a.BodyMD5 != nil {
		if err := ipc.WriteBytes(w, a.BodyMD5); err != nil {
			return err
		}
	} else {
		if err := ipc.WriteBytes(w, nil); err != nil {
			return err
		}
	}
	return nil
}

// readAuth is the inverse of writeAuth.
func readAuth(r io.Reader) (kcgi.Auth, error) {
	var a kcgi.Auth
	var scheme int32
	if err := ipc.ReadFixed(r, &scheme); err != nil {
		return kcgi.Auth{}, err
	}
	a.Scheme = kcgi.AuthScheme(scheme)
	if err := ipc.ReadFixed(r, &a.Authorised); err != nil {
		return kcgi.Auth{}, err
	}
	switch a.Scheme {
	case kcgi.AuthBasic:
		s, err := ipc.ReadWord(r)
		if err != nil {
			return kcgi.Auth{}, err
		}
		a.Basic.Response = s
	case kcgi.AuthDigest:
		var alg, qop int32
		if err := ipc.ReadFixed(r, &alg); err != nil {
			return kcgi.Auth{}, err
		}
		if err := ipc.ReadFixed(r, &qop); err != nil {
			return kcgi.Auth{}, err
		}
		a.Digest.Alg = kcgi.DigestAlg(alg)
		a.Digest.QoP = kcgi.DigestQoP(qop)
		fields := []*string{
			&a.Digest.User, &a.Digest.Realm, &a.Digest.URI,
			&a.Digest.Nonce, &a.Digest.CNonce, &a.Digest.Response, &a.Digest.Opaque,
		}
		for _, f := range fields {
			s, err := ipc.ReadWord(r)
			if err != nil {
				return kcgi.Auth{}, err
			}
			*f = s
		}
		if err := ipc.ReadFixed(r, &a.Digest.Count); err != nil {
			return kcgi.Auth{}, err
		}
	}
	md5sum, err := ipc.ReadBytes(r)
	if err != nil {
		return kcgi.Auth{}, err
	}
	a.BodyMD5 = md5sum
	return a, nil
}

// ReadField reads one wire Field, returning (Field{}, false, nil) once
// the end-of-stream sentinel is reached.
func ReadField(r io.Reader) (kcgi.Field, bool, error) {
	var marker uint8
	if err := ipc.ReadFixed(r, &marker); err != nil {
		return kcgi.Field{}, false, err
	}
	if marker == endMarker {
		return kcgi.Field{}, false, nil
	}

	var f kcgi.Field
	var kind, state, parsedKind, ctypeIdx int32

	if err := ipc.ReadFixed(r, &kind); err != nil {
		return kcgi.Field{}, false, err
	}
	f.Kind = kcgi.InputKind(kind)

	key, err := ipc.ReadWord(r)
	if err != nil {
		return kcgi.Field{}, false, err
	}
	f.Key = key

	val, err := ipc.ReadBytes(r)
	if err != nil {
		return kcgi.Field{}, false, err
	}
	f.Value = val

	if err := ipc.ReadFixed(r, &state); err != nil {
		return kcgi.Field{}, false, err
	}
	f.State = kcgi.ParseState(state)

	if err := ipc.ReadFixed(r, &parsedKind); err != nil {
		return kcgi.Field{}, false, err
	}
	f.Parsed.Kind = kcgi.ParsedKind(parsedKind)

	switch f.Parsed.Kind {
	case kcgi.ParsedInt64:
		if err := ipc.ReadFixed(r, &f.Parsed.Int64); err != nil {
			return kcgi.Field{}, false, err
		}
	case kcgi.ParsedDouble:
		if err := ipc.ReadFixed(r, &f.Parsed.Double); err != nil {
			return kcgi.Field{}, false, err
		}
	case kcgi.ParsedString:
		s, err := ipc.ReadWord(r)
		if err != nil {
			return kcgi.Field{}, false, err
		}
		f.Parsed.Str = s
	}

	file, err := ipc.ReadWord(r)
	if err != nil {
		return kcgi.Field{}, false, err
	}
	f.File = file

	ctype, err := ipc.ReadWord(r)
	if err != nil {
		return kcgi.Field{}, false, err
	}
	f.ContentType = ctype

	if err := ipc.ReadFixed(r, &ctypeIdx); err != nil {
		return kcgi.Field{}, false, err
	}
	f.ContentTypeIndex = int(ctypeIdx)

	xcode, err := ipc.ReadWord(r)
	if err != nil {
		return kcgi.Field{}, false, err
	}
	f.ContentTransferEncoding = xcode

	return f, true, nil
}
