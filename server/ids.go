// Copyright 2026 The ClawBuds Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import "github.com/gofrs/uuid"

// newRandomID mints an id for domain objects the storage layer itself
// does not allocate (a Group's or a Message's id is chosen by the
// service before the record is written).
func newRandomID() string {
	return uuid.Must(uuid.NewV4()).String()
}
