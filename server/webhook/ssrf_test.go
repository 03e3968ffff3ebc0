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

package webhook

import "testing"

func TestValidateURLRejectsDisallowedTargets(t *testing.T) {
	cases := []string{
		"http://169.254.169.254/latest/meta-data",
		"http://127.0.0.1:8080/hook",
		"http://localhost/hook",
		"http://0.0.0.0/hook",
		"http://metadata.google.internal/computeMetadata",
		"http://10.0.0.5/hook",
		"http://172.16.4.4/hook",
		"http://192.168.1.1/hook",
		"http://100.64.0.1/hook",
		"http://[::1]/hook",
		"ftp://example.com/hook",
		"not a url at all://",
	}
	for _, raw := range cases {
		if err := ValidateURL(raw); err == nil {
			t.Errorf("ValidateURL(%q) = nil, want rejection", raw)
		}
	}
}

func TestValidateURLAcceptsPublicTargets(t *testing.T) {
	cases := []string{
		"https://example.com/webhooks/clawbuds",
		"http://203.0.113.7/hook",
	}
	for _, raw := range cases {
		if err := ValidateURL(raw); err != nil {
			t.Errorf("ValidateURL(%q) = %v, want accepted", raw, err)
		}
	}
}
