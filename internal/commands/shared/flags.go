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

package shared

import "github.com/spf13/pflag"

// globals holds the persistent flags shared by every subcommand.
type globals struct {
	verbose bool
	quiet   bool
	json    bool
	config  string
}

var flags globals

// build is stamped by main through SetVersion.
var build = struct {
	version, commit, date string
}{"dev", "unknown", "unknown"}

// AddGlobalFlags registers --verbose, --quiet, --json and --config on fs.
func AddGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	fs.BoolVarP(&flags.quiet, "quiet", "q", false, "Suppress non-error output")
	fs.BoolVar(&flags.json, "json", false, "Output in JSON format")
	fs.StringVar(&flags.config, "config", "", "Path to config file (default: ~/.config/herald/config.yaml)")
}

// SetVersion records build information.
func SetVersion(v, c, b string) {
	build.version, build.commit, build.date = v, c, b
}

// GetVersion returns version, commit and build date.
func GetVersion() (string, string, string) {
	return build.version, build.commit, build.date
}

func GetVerbose() bool { return flags.verbose }

func GetQuiet() bool { return flags.quiet }

func GetJSON() bool { return flags.json }

// GetConfigPath returns the --config value, empty when unset.
func GetConfigPath() string { return flags.config }

// SetConfigPathForTest points config loading at path.
func SetConfigPathForTest(path string) { flags.config = path }

// SetJSONForTest toggles --json.
func SetJSONForTest(on bool) { flags.json = on }

// ResetFlagsForTest clears every global flag.
func ResetFlagsForTest() { flags = globals{} }
