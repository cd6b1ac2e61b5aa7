package validator

import (
	"errors"
	"testing"
)

func TestValidators(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"all nil", All(nil, nil), false},
		{"all first error", All(nil, errors.New("x")), true},
		{"not empty", NotEmpty("a", "name"), false},
		{"empty", NotEmpty("", "name"), true},
		{"no duplicates", NoDuplicates([]string{"a", "b"}, "ids"), false},
		{"duplicates", NoDuplicates([]string{"a", "a"}, "ids"), true},
		{"allowed", MatchesAllowed("js", []string{"js", "ir"}, "emit"), false},
		{"not allowed", MatchesAllowed("xml", []string{"js", "ir"}, "emit"), true},
		{"non negative", NonNegative(0, "jobs"), false},
		{"negative", NonNegative(-1, "jobs"), true},
		{"identifier", Identifier("render_page", "root"), false},
		{"identifier with dash", Identifier("render-page", "root"), true},
		{"keyword", Identifier("class", "root"), true},
		{"extension", Extension(".liquid", "ext"), false},
		{"extension without dot", Extension("liquid", "ext"), true},
		{"bare dot", Extension(".", "ext"), true},
		{"plain text", HasNoTemplate("dist", "out"), false},
		{"template text", HasNoTemplate("{{ dir }}", "out"), true},
		{"each", Each([]string{".a", "b"}, Extension, "exts"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if (tt.err != nil) != tt.wantErr {
				t.Errorf("err = %v, wantErr %v", tt.err, tt.wantErr)
			}
		})
	}
}

func TestAllReportsEveryFailure(t *testing.T) {
	err := All(NotEmpty(" ", "views"), nil, NonNegative(-2, "jobs"))
	if err == nil {
		t.Fatal("expected an error")
	}
	want := "views must not be empty\njobs must not be negative, got -2"
	if err.Error() != want {
		t.Errorf("err = %q, want %q", err.Error(), want)
	}
}

func TestNoDuplicatesNamesBothIndexes(t *testing.T) {
	err := NoDuplicates([]string{".a", ".b", ".a"}, "extensions")
	if err == nil || err.Error() != "extensions[2] repeats extensions[0] (.a)" {
		t.Errorf("err = %v", err)
	}
}

func TestMatchesAllowedListsChoices(t *testing.T) {
	err := MatchesAllowed("xml", []string{"js", "ir", "ast"}, "emit")
	if err == nil || err.Error() != "emit must be one of js, ir, ast, got xml" {
		t.Errorf("err = %v", err)
	}
}

func TestEachNamesIndex(t *testing.T) {
	err := Each([]string{".a", "b"}, Extension, "extensions")
	if err == nil || err.Error() != `extensions[1] must look like ".ext", got "b"` {
		t.Errorf("err = %v", err)
	}
}
