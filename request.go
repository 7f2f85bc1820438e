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

// Head is one request header line, already rewritten to its canonical
// HTTP form (see RewriteHeaderName).
type Head struct {
	Key string
	Val string
}

// KeyValidator pairs a field name with an optional validator, the Go
// form of struct kvalid: a name with no Validator accepts any value
// unchanged.
type KeyValidator struct {
	Name     string
	Validate Validator
}

// Request is the fully drained, fully validated view of one CGI or
// FastCGI request handed to application code -- the Go shape of
// struct kreq. It owns every Field and Head it references; nothing in
// it is valid after Free runs.
type Request struct {
	Headers     []Head
	headerByIdx [headerMax]int // index into Headers, or -1

	Method Method
	Scheme Scheme
	Auth   Auth

	Cookies []Field
	Fields  []Field

	// cookieByName/fieldByName bucket Field indices by exact key,
	// the Go substitute for kreq's intrusive cookienmap/fieldnmap
	// linked lists: Go has no pointer arithmetic, so a bucket is a
	// slice of indices into Cookies/Fields rather than a chain of
	// *kpair nodes.
	cookieByName map[string][]int
	fieldByName  map[string][]int
	// cookieByKey/fieldByKey bucket Field indices by validator-table
	// index (kreq's cookiemap/fieldmap), keyed by KeyIndex; a Field
	// that matched no validator entry is filed under len(Keys).
	cookieByKey map[int][]int
	fieldByKey  map[int][]int

	Keys []KeyValidator

	MimeIndex int
	PageIndex int

	Path     string
	Suffix   string
	FullPath string
	PageName string
	Remote   string
	Host     string
	Port     uint16

	// Writer is the response sink for this request, set by the
	// control/worker wiring before the handler runs.
	Writer *Writer
}

// NewRequest allocates a Request bound to a validator table; call
// Free once the handler using it returns.
func NewRequest(keys []KeyValidator) *Request {
	r := &Request{
		Keys:         keys,
		cookieByName: make(map[string][]int),
		fieldByName:  make(map[string][]int),
		cookieByKey:  make(map[int][]int),
		fieldByKey:   make(map[int][]int),
	}
	for i := range r.headerByIdx {
		r.headerByIdx[i] = -1
	}
	return r
}

// AddHeader records a recognised header's value for fast lookup by
// RecognisedHeader and appends it to Headers for iteration.
func (r *Request) AddHeader(rh RecognisedHeader, key, val string) {
	r.Headers = append(r.Headers, Head{Key: key, Val: val})
	if rh >= 0 && rh < headerMax {
		r.headerByIdx[rh] = len(r.Headers) - 1
	}
}

// HeaderValue returns the value of a recognised header and whether it
// was present at all.
func (r *Request) HeaderValue(rh RecognisedHeader) (string, bool) {
	if rh < 0 || rh >= headerMax {
		return "", false
	}
	idx := r.headerByIdx[rh]
	if idx < 0 {
		return "", false
	}
	return r.Headers[idx].Val, true
}

// keyIndex looks up name in Keys, returning len(Keys) if unmatched --
// the same "unmatched sentinel is the table length" convention
// RecognisedHeader and MimeTable use.
func (r *Request) keyIndex(name string) int {
	for i, k := range r.Keys {
		if k.Name == name {
			return i
		}
	}
	return len(r.Keys)
}

// addField validates f against the key table (if a validator is
// registered for f.Key) and files it into both the by-name and
// by-key-index buckets of the given kind.
func (r *Request) addField(f Field) {
	idx := r.keyIndex(f.Key)
	f.KeyIndex = idx
	if idx < len(r.Keys) && r.Keys[idx].Validate != nil {
		r.Keys[idx].Validate(&f)
	}

	switch f.Kind {
	case InputCookie:
		r.Cookies = append(r.Cookies, f)
		i := len(r.Cookies) - 1
		r.cookieByName[f.Key] = append(r.cookieByName[f.Key], i)
		r.cookieByKey[idx] = append(r.cookieByKey[idx], i)
	default:
		r.Fields = append(r.Fields, f)
		i := len(r.Fields) - 1
		r.fieldByName[f.Key] = append(r.fieldByName[f.Key], i)
		r.fieldByKey[idx] = append(r.fieldByKey[idx], i)
	}
}

// AddCookie files a parsed cookie pair.
func (r *Request) AddCookie(f Field) {
	f.Kind = InputCookie
	r.addField(f)
}

// AddField files a parsed query/form/body pair.
func (r *Request) AddField(f Field) {
	if f.Kind == InputCookie {
		f.Kind = InputForm
	}
	r.addField(f)
}

// FieldValues returns every Field with the given key, in arrival
// order, the Go equivalent of walking a kreq fieldnmap bucket.
func (r *Request) FieldValues(key string) []*Field {
	idxs := r.fieldByName[key]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]*Field, len(idxs))
	for i, idx := range idxs {
		out[i] = &r.Fields[idx]
	}
	return out
}

// FieldValue returns the first Field with the given key, or nil.
func (r *Request) FieldValue(key string) *Field {
	idxs := r.fieldByName[key]
	if len(idxs) == 0 {
		return nil
	}
	return &r.Fields[idxs[0]]
}

// CookieValue returns the first cookie Field with the given key, or
// nil.
func (r *Request) CookieValue(key string) *Field {
	idxs := r.cookieByName[key]
	if len(idxs) == 0 {
		return nil
	}
	return &r.Cookies[idxs[0]]
}

// FieldsByKeyIndex returns every Field matched against Keys[idx] (or,
// for idx == len(Keys), every field that matched no validator at
// all), the Go equivalent of iterating a kreq fieldmap bucket.
func (r *Request) FieldsByKeyIndex(idx int) []*Field {
	idxs := r.fieldByKey[idx]
	if len(idxs) == 0 {
		return nil
	}
	out := make([]*Field, len(idxs))
	for i, fi := range idxs {
		out[i] = &r.Fields[fi]
	}
	return out
}

// Free releases everything Request holds and closes its Writer, if
// any. It is safe to call more than once.
func (r *Request) Free() {
	if r.Writer != nil {
		r.Writer.Close()
		r.Writer = nil
	}
	r.Headers = nil
	r.Cookies = nil
	r.Fields = nil
	r.cookieByName = nil
	r.fieldByName = nil
	r.cookieByKey = nil
	r.fieldByKey = nil
}
