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

package slicer

import "testing"

func TestParseCriterionForms(t *testing.T) {
	tests := []struct {
		in   string
		kind Kind
		line int
		name string
	}{
		{"ret", KindReturn, 0, ""},
		{"12:x", KindPoint, 12, "x"},
		{"12:", KindGlobal, 12, ""},
		{"foo", KindCallName, 0, "foo"},
		{"foo()", KindCallData, 0, "foo"},
	}
	for _, tc := range tests {
		got, err := ParseCriterion(tc.in)
		if err != nil {
			t.Fatalf("ParseCriterion(%q) error: %v", tc.in, err)
		}
		if got.Kind != tc.kind {
			t.Errorf("ParseCriterion(%q).Kind = %v, want %v", tc.in, got.Kind, tc.kind)
		}
		if got.Line != tc.line {
			t.Errorf("ParseCriterion(%q).Line = %d, want %d", tc.in, got.Line, tc.line)
		}
		if got.Name != tc.name {
			t.Errorf("ParseCriterion(%q).Name = %q, want %q", tc.in, got.Name, tc.name)
		}
	}
}

func TestParseCriterionRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc:x", "()"} {
		if _, err := ParseCriterion(in); err == nil {
			t.Errorf("ParseCriterion(%q) expected error, got none", in)
		}
	}
}

func TestParseCriteriaSplitsAndTrims(t *testing.T) {
	got, err := ParseCriteria(" foo , 10:x , ret ")
	if err != nil {
		t.Fatalf("ParseCriteria error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("ParseCriteria returned %d criteria, want 3: %+v", len(got), got)
	}
	if got[0].Kind != KindCallName || got[0].Name != "foo" {
		t.Errorf("got[0] = %+v, want CallName foo", got[0])
	}
	if got[1].Kind != KindPoint || got[1].Line != 10 || got[1].Name != "x" {
		t.Errorf("got[1] = %+v, want Point 10:x", got[1])
	}
	if got[2].Kind != KindReturn {
		t.Errorf("got[2] = %+v, want Return", got[2])
	}
}

func TestParseCriteriaEmpty(t *testing.T) {
	got, err := ParseCriteria("")
	if err != nil {
		t.Fatalf("ParseCriteria(\"\") error: %v", err)
	}
	if got != nil {
		t.Fatalf("ParseCriteria(\"\") = %v, want nil", got)
	}
}
