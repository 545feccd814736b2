package media

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, JPEG},
		{"png", []byte("\x89PNG\r\n\x1a\n\x00\x00"), PNG},
		{"gif", []byte("GIF89a"), ""},
		{"short jpeg", []byte{0xFF, 0xD8}, ""},
		{"truncated png", []byte("\x89PNG\r\n"), ""},
		{"empty", nil, ""},
	}
	for _, tt := range tests {
		if got := Detect(tt.data); got != tt.want {
			t.Errorf("%s: Detect = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtension(t *testing.T) {
	if Extension(JPEG) != ".jpg" || Extension(PNG) != ".png" || Extension("image/gif") != "" {
		t.Error("unexpected extension mapping")
	}
}

func TestIsImageKey(t *testing.T) {
	for _, k := range []string{"a.jpg", "YourWindow/b.PNG", "c.jpeg"} {
		if !IsImageKey(k) {
			t.Errorf("IsImageKey(%q) = false", k)
		}
	}
	if IsImageKey("notes.txt") || IsImageKey("noext") {
		t.Error("non-image key accepted")
	}
}
