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

package control

import (
	"context"
	"net"

	"go.uber.org/zap"

	"github.com/kristapsdz/kcgi-go/internal/metrics"
)

// RunClassic listens on ln (typically a systemd- or manager-provided
// FastCGI socket) and, for each accepted connection, invokes dispatch
// in a goroutine bounded by maxWorkers concurrent in flight. This is
// the "fdaccept" mode of kfcgi_control: control owns the listening
// socket directly rather than having connections handed to it one fd
// at a time.
func RunClassic(ctx context.Context, ln net.Listener, dispatch Dispatcher, maxWorkers int64, reg *metrics.Registry, log *zap.Logger) error {
	return Loop(ctx, netAcceptor(ln), dispatch, maxWorkers, reg, log)
}
