// Copyright 2025 Tom Barlow
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

/*
Package cli builds herald's command tree.

The tree is:

	herald
	├── run           Run the bot until interrupted
	├── call          Call one API method and print the response
	├── commands      List commands and check command files
	├── token         Store and remove access tokens in the keyring
	├── config        Show, locate and validate configuration
	├── ping          Check credentials and API connectivity
	├── completion    Generate shell completion scripts
	├── version       Show version
	└── help          Show help, optionally as JSON

From main.go:

	cli.SetVersion(version, commit, date)
	if err := cli.NewRootCommand().Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

	--verbose, -v    Debug logging
	--quiet, -q      Errors only
	--json           JSON output where supported
	--config         Path to config file

# Exit Codes

	0  success
	1  general failure
	2  invalid usage
	3  configuration error
	4  the API answered with an error
	5  network failure
*/
package cli
