// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import "testing"

func TestParseAnnotateOpts(t *testing.T) {
	o := parseAnnotateOpts("dd, slice ,pta")
	if !o.dd || !o.slice || !o.pta {
		t.Fatalf("parseAnnotateOpts = %+v, want dd/slice/pta set", o)
	}
	if o.cd || o.rd {
		t.Fatalf("parseAnnotateOpts = %+v, want cd/rd unset", o)
	}
	if !o.any() {
		t.Fatalf("any() = false, want true")
	}
}

func TestParseAnnotateOptsEmpty(t *testing.T) {
	o := parseAnnotateOpts("")
	if o.any() {
		t.Fatalf("parseAnnotateOpts(\"\") = %+v, want no tags set", o)
	}
}
