package rss

import "testing"

func TestStripMarkup(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"<p>Hello <b>World</b></p>", "Hello World"},
		{"<b>hi</b>", "hi"},
		{"plain text", "plain text"},
		{"&amp; &lt; &gt; &quot;", "& < > \""},
		{"<div>  多个   空格  </div>", "多个 空格"},
		{"line1<br>line2<br/>line3", "line1 line2 line3"},
		{"<p>a</p><p>b</p>", "a b"},
		{"<script>alert(1)</script>正文<style>p{}</style>", "正文"},
		{"a&nbsp;b", "a b"},
		{"1 < 2", "1 < 2"},
		{"<a href=\"https://x\">链接</a>", "链接"},
		{"", ""},
	}

	for _, tc := range tests {
		got := StripMarkup(tc.input)
		if got != tc.expected {
			t.Errorf("StripMarkup(%q) = %q, 期望 %q", tc.input, got, tc.expected)
		}
	}
}
