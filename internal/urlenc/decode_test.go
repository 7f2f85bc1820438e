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

package urlenc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "plain", in: "hello", want: "hello"},
		{name: "plus becomes space", in: "a+b", want: "a b"},
		{name: "percent escape", in: "a%20b", want: "a b"},
		{name: "upper-case hex", in: "a%2Fb", want: "a/b"},
		{name: "short escape", in: "a%2", wantErr: true},
		{name: "bad hex digit", in: "a%gzb", wantErr: true},
		{name: "embedded literal nul rejected", in: "a\x00b", wantErr: true},
		{name: "decoded nul rejected", in: "a%00b", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseURLEncoded(t *testing.T) {
	var got [][2]string
	emit := func(k string, v []byte) { got = append(got, [2]string{k, string(v)}) }

	ParseURLEncoded("a=1&b=two+words;c=%2Fx", emit, nil)

	assert.Equal(t, [][2]string{
		{"a", "1"},
		{"b", "two words"},
		{"c", "/x"},
	}, got)
}

func TestParseURLEncodedSkipsNoValueAndEmptyKey(t *testing.T) {
	var got [][2]string
	emit := func(k string, v []byte) { got = append(got, [2]string{k, string(v)}) }

	ParseURLEncoded("novalue&=noval&ok=1", emit, nil)

	assert.Equal(t, [][2]string{{"ok", "1"}}, got)
}

func TestParseCookies(t *testing.T) {
	var got [][2]string
	emit := func(k string, v []byte) { got = append(got, [2]string{k, string(v)}) }

	ParseCookies("a=1; b=2;c=3", emit, nil)

	assert.Equal(t, [][2]string{{"a", "1"}, {"b", "2"}, {"c", "3"}}, got)
}

func TestParsePlainText(t *testing.T) {
	var got [][2]string
	emit := func(k string, v []byte) { got = append(got, [2]string{k, string(v)}) }

	ParsePlainText("name=John Doe\r\nage=30\r\n", emit, nil)

	assert.Equal(t, [][2]string{{"name", "John Doe"}, {"age", "30"}}, got)
}
