package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompileFilter_ValidExpressions(t *testing.T) {
	now := time.Now()
	// A log file as it would be seen while walking a mounted file store.
	fi := FileInfo{
		Path:  "/mnt/data/logs/app.log",
		Name:  "app.log",
		Size:  524288,
		Mode:  0100644,
		Perm:  0644,
		Mtime: now.Add(-30 * time.Minute),
		Atime: now.Add(-5 * time.Minute),
		Ctime: now.Add(-90 * time.Minute),
		Uid:   1234,
		Gid:   1234,
	}

	tests := []struct {
		name string
		expr string
		want bool
	}{
		{"MatchName", `name == "app.log"`, true},
		{"WrongName", `name == "trace.log"`, false},
		{"MatchPath", `path == "/mnt/data/logs/app.log"`, true},
		{"WrongPath", `path == "/mnt/archive/app.log"`, false},
		{"MatchSize", `size == 524288`, true},
		{"SizeTooBig", `size > 1MiB`, false},
		{"SizeUnitsKiB", `size >= 512KiB`, true},
		{"SizeUnitsKB", `size < 600KB`, true},
		{"MatchMode", `mode == 33188`, true},
		{"MatchPermOctal", `perm == 0644`, true},
		{"MatchUid", `uid == 1234`, true},
		{"MatchGid", `gid == 1234`, true},
		{"MtimeOlderThan15m", `mtime > 15m`, true},
		{"MtimeNotOlderThan1h", `mtime > 1h`, false},
		{"AtimeWithin10m", `atime < 10m`, true},
		{"CtimeOlderThan1h", `ctime > 1h`, true},
		{"GlobName", `name =~ "*.log"`, true},
		{"NoGlobMatch", `name =~ "core.*"`, false},
		{"GlobPath", `path =~ "/mnt/data/logs/*.log"`, true},
		{"RegexNameFunc", `regex(name, "app.*\\.log")`, true},
		{"NoRegexMatch", `regex(name, "^trace")`, false},
		{"GlobFunc", `glob(path, "*.gz")`, false},
		{"Combined", `name == "app.log" && size >= 512KiB && perm == 0644`, true},
		{"EitherBranch", `(size > 1MiB && perm == 0644) || (uid == 1234 && gid == 1234)`, true},
		{"MtimeWindow", `mtime > 15m && mtime < 1h`, true},
		{"SizeRange", `size >= 500KiB && size <= 600KiB`, true},
		{"OwnerAndPath", `uid == 1234 && gid == 1234 && path =~ "/mnt/data/logs/*.log"`, true},
		{"DoubleNegation", `!(perm != 0644)`, true},
		{"FuncForms", `size > bytes("100KB") && mtime > ago("1h")`, true},
		{"NegSizeAndPerm", `size > 1MiB && perm == 0644`, false},
		{"NegRootOwned", `uid == 0 || gid == 0`, false},
		{"NegRegexOrGlob", `regex(name, "^trace") || glob(path, "*.gz")`, false},
		{"NegatedMatch", `!(size == 524288)`, false},
		{"NegTimeBranches", `(mtime < 15m) || (atime > 1h)`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter, err := compileFilter(tt.expr)
			assert.NoError(t, err, "compileFilter(%q) returned error", tt.expr)
			ok, err := filter(fi)
			assert.NoError(t, err, "filter(%q) returned error", tt.expr)
			assert.Equal(t, tt.want, ok, "filter(%q) = %v, want %v", tt.expr, ok, tt.want)
		})
	}
}

func TestCompileFilter_InvalidExpression(t *testing.T) {
	_, err := compileFilter("not_a_valid_expr(")
	assert.Error(t, err)
}

func TestCompileFilter_TimeAndSizeUnits(t *testing.T) {
	now := time.Now()
	fi := FileInfo{Mtime: now.Add(-72 * time.Hour), Size: 4 * 1024 * 1024}

	// Day granularity for times.
	filter, err := compileFilter(`mtime > 2d`)
	assert.NoError(t, err)
	ok, err := filter(fi)
	assert.NoError(t, err)
	assert.True(t, ok)

	// Binary prefixes for sizes.
	filter, err = compileFilter(`size >= 4MiB`)
	assert.NoError(t, err)
	ok, err = filter(fi)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestPreprocessDSL_Rewrites(t *testing.T) {
	cases := []struct {
		input    string
		contains string
	}{
		{`perm == 0750`, `Perm == 488`},
		{`mtime > 2d`, `Mtime < ago("2d")`},
		{`size >= 4MiB`, `Size >= bytes("4MiB")`},
	}

	for _, tt := range cases {
		t.Run(tt.input, func(t *testing.T) {
			out := preprocessDSL(tt.input)
			assert.Contains(t, out, tt.contains)
		})
	}
}
