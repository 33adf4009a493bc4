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

// Package plugins provides the commands herald ships with and the loader
// for declarative commands kept as YAML files in a commands directory.
//
// A command file names a pattern and either a reply template or an API
// call. Files are discovered recursively, and a Watcher keeps the
// registry in step with the directory while the bot runs.
package plugins
