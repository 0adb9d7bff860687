package core

import "testing"

func TestFamilyOf(t *testing.T) {
	tests := []struct {
		name string
		want FileFamily
	}{
		{"app.js", FamilyBrace},
		{"src/Main.JAVA", FamilyBrace},
		{"lib.cpp", FamilyBrace},
		{"app.py", FamilyLine},
		{"index.html", FamilyLine},
		{"README.md", FamilyLine},
		{"Makefile", FamilyUnknown},
		{"data.csv", FamilyUnknown},
		{"archive.tar.gz", FamilyUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FamilyOf(tt.name); got != tt.want {
				t.Errorf("FamilyOf(%q) = %s, want %s", tt.name, got, tt.want)
			}
		})
	}
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		fileName string
		want     string
	}{
		{
			name:     "empty input",
			code:     "",
			fileName: "app.js",
			want:     "",
		},
		{
			name:     "brace trims trailing prose",
			code:     "function f() {\n  return 1;\n}\nThis function returns one.",
			fileName: "app.js",
			want:     "function f() {\n  return 1;\n}",
		},
		{
			name:     "brace without closing brace is unchanged",
			code:     "let x = 1;\nexplanation",
			fileName: "app.ts",
			want:     "let x = 1;\nexplanation",
		},
		{
			name:     "brace keeps interior braces",
			code:     "a {}\nb {}\n",
			fileName: "style.c",
			want:     "a {}\nb {}",
		},
		{
			name:     "line trims trailing comments and blanks",
			code:     "import os\n\nprint(os.name)\n\n# done\n\n",
			fileName: "app.py",
			want:     "import os\n\nprint(os.name)",
		},
		{
			name:     "line keeps interior comments",
			code:     "x = 1\n# note\ny = 2\n'''trailing docstring'''",
			fileName: "app.py",
			want:     "x = 1\n# note\ny = 2",
		},
		{
			name:     "line with only comments is unchanged",
			code:     "# one\n# two\n",
			fileName: "notes.sh",
			want:     "# one\n# two\n",
		},
		{
			name:     "line keeps trailing prose that is not a comment",
			code:     "x = 1\nThis sets x.",
			fileName: "app.py",
			want:     "x = 1\nThis sets x.",
		},
		{
			name:     "line keeps CRLF separators",
			code:     "x = 1\r\ny = 2\r\n# trailing\r\n",
			fileName: "a.py",
			want:     "x = 1\r\ny = 2",
		},
		{
			name:     "line treats lone CR as a break",
			code:     "x = 1\ry = 2\r# trailing",
			fileName: "a.py",
			want:     "x = 1\ry = 2",
		},
		{
			name:     "unknown extension is identity",
			code:     "a,b\n1,2\n# trailing",
			fileName: "data.csv",
			want:     "a,b\n1,2\n# trailing",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sanitize(tt.code, tt.fileName); got != tt.want {
				t.Errorf("Sanitize() = %q, want %q", got, tt.want)
			}
		})
	}
}
