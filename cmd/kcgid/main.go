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

// Command kcgid is the FastCGI daemon: run without --role it is the
// manager/supervisor: it binds the listening socket, drops privileges,
// and self-reexec's this same binary with --role worker|control|responder
// for each child it needs. Grounded on Caddy's single-package
// cmd/caddy/main.go entrypoint shape, generalised with spf13/cobra +
// spf13/pflag the way its own cmd package uses them.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var roleFlag string

func main() {
	root := &cobra.Command{
		Use:           "kcgid",
		Short:         "privilege-separated CGI/FastCGI request runtime",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatch(roleFlag)
		},
	}

	root.PersistentFlags().StringVar(&roleFlag, "role", "", "internal: reexec role (worker|control|responder); omit to run the manager")
	bindManagerFlags(root.PersistentFlags())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "kcgid:", err)
		os.Exit(1)
	}
}
