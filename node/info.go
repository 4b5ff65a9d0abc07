// Copyright 2026 The axus Authors
// This file is part of the axus library.
//
// The axus library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The axus library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the axus library. If not, see <http://www.gnu.org/licenses/>.

package node

import "fmt"

// Set via -ldflags at build time.
var gitTag = "unknown"

// AppInfo describes the running daemon; the health RPC serves it.
type AppInfo struct {
	Name   string
	GitTag string
}

func NewAppInfo(name string) AppInfo {
	return AppInfo{Name: name, GitTag: gitTag}
}

func (i AppInfo) String() string {
	return fmt.Sprintf("%s (%s)", i.Name, i.GitTag)
}
