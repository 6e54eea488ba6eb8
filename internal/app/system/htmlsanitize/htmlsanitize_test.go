package htmlsanitize_test

import (
	"testing"

	"github.com/dalemusser/chimeo/internal/app/system/htmlsanitize"
)

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"plain", "We meet on Sundays.", "We meet on Sundays."},
		{"trims", "  hi  ", "hi"},
		{"tags stripped", "<b>Bold</b> move", "Bold move"},
		{"script removed", `<script>alert("x")</script>Hello`, "Hello"},
		{"ampersand kept", "Tom & Jerry", "Tom & Jerry"},
		{"onclick dropped", `<a href="#" onclick="evil()">link</a>`, "link"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := htmlsanitize.PlainText(tt.in); got != tt.want {
				t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
