// Copyright (C) 2021-2022  Ambassador Labs
//
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/pmezard/go-difflib/difflib"
)

var dumpConfig = spew.ConfigState{ //nolint:gochecknoglobals,exhaustivestruct
	Indent:                  "  ",
	DisableCapacities:       true,
	DisablePointerAddresses: true,
	SortKeys:                true,
}

// Dump renders v with stable, sorted-key output suitable for diffing in a
// test failure message.
func Dump(v interface{}) string {
	return dumpConfig.Sdump(v)
}

// DiffDump returns a unified diff between the Dump output of want and got,
// for use in assertion failure messages where testify's default %#v diff is
// too noisy (unsorted map keys, pointer addresses).
func DiffDump(want, got interface{}) (string, error) {
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(Dump(want)),
		B:        difflib.SplitLines(Dump(got)),
		FromFile: "want",
		ToFile:   "got",
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", fmt.Errorf("testutil: computing diff: %w", err)
	}
	return text, nil
}
