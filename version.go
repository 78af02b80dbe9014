// Copyright 2013 Google Inc. All Rights Reserved.
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

package netsuke

import (
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is the manifest schema version this binary understands.
const SchemaVersion = "1.0"

// ParseVersion splits the major/minor components of a "major.minor[.patch]"
// version string, ignoring anything past the first non-digit run in each
// component.
func ParseVersion(version string) (int, int) {
	end := strings.Index(version, ".")
	if end == -1 {
		end = len(version)
	}
	major, _ := strconv.Atoi(keepNumbers(version[:end]))
	minor := 0
	if end != len(version) {
		start := end + 1
		end = strings.Index(version[start:], ".")
		if end == -1 {
			end = len(version)
		} else {
			end += start
		}
		minor, _ = strconv.Atoi(keepNumbers(version[start:end]))
	}
	return major, minor
}

func keepNumbers(s string) string {
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i != -1 {
		return s[:i]
	}
	return s
}

// CheckManifestVersion reports whether a manifest declaring
// netsuke_version is compatible with SchemaVersion: a binary with a newer
// major version may still read it (with a compatibility note left to the
// caller to surface), but a manifest requiring a newer major or minor
// version than this binary supports is rejected outright.
func CheckManifestVersion(version string) error {
	if version == "" {
		return nil
	}
	binMajor, binMinor := ParseVersion(SchemaVersion)
	fileMajor, fileMinor := ParseVersion(version)
	if binMajor < fileMajor || (binMajor == fileMajor && binMinor < fileMinor) {
		return fmt.Errorf("manifest requires netsuke_version %q, this binary supports up to %q", version, SchemaVersion)
	}
	return nil
}
